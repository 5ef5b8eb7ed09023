package proto

import (
	"bytes"
	"reflect"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	body := PublishRequest{
		ServiceID:  42,
		Generation: 3,
		Props:      PropList{{Key: "region", Values: []PropValue{{Kind: PropString, Str: "eu-west"}}}},
		TTLSeconds: 30,
	}.Encode()

	var wire bytes.Buffer
	if err := WriteFrame(&wire, &Frame{Kind: KindPublish, TaID: 7, Body: body}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&wire)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Kind != KindPublish || got.TaID != 7 {
		t.Fatalf("got kind=%v taID=%d, want publish/7", got.Kind, got.TaID)
	}

	pr, err := DecodePublishRequest(got.Body)
	if err != nil {
		t.Fatalf("DecodePublishRequest: %v", err)
	}
	if pr.ServiceID != 42 || pr.Generation != 3 || pr.TTLSeconds != 30 {
		t.Fatalf("decoded %+v, want ServiceID=42 Generation=3 TTLSeconds=30", pr)
	}
	if len(pr.Props) != 1 || pr.Props[0].Key != "region" || pr.Props[0].Values[0].Str != "eu-west" {
		t.Fatalf("decoded props %+v, want region=eu-west", pr.Props)
	}
}

func TestNotifyBodyMatchRoundTrip(t *testing.T) {
	nb := NotifyBody{
		NotifyKind: NotifyMatch,
		MatchType:  1,
		ServiceID:  9,
		Generation: 2,
		TTLSeconds: 60,
		Owner:      5,
		IsOrphan:   true,
		OrphanUnixNano: 123456789,
	}
	out, err := DecodeNotifyBody(nb.Encode())
	if err != nil {
		t.Fatalf("DecodeNotifyBody: %v", err)
	}
	if !reflect.DeepEqual(out, NotifyBody{
		NotifyKind:     NotifyMatch,
		MatchType:      1,
		ServiceID:      9,
		Generation:     2,
		Props:          out.Props,
		TTLSeconds:     60,
		Owner:          5,
		IsOrphan:       true,
		OrphanUnixNano: 123456789,
	}) {
		t.Fatalf("round-trip mismatch: %+v", out)
	}
}

func TestAcceptBodyRoundTrip(t *testing.T) {
	out, err := DecodeAcceptBody(AcceptBody{HasHello: true, Version: 1, ClientID: 99}.Encode())
	if err != nil {
		t.Fatalf("DecodeAcceptBody: %v", err)
	}
	if !out.HasHello || out.Version != 1 || out.ClientID != 99 {
		t.Fatalf("got %+v", out)
	}

	out2, err := DecodeAcceptBody(AcceptBody{}.Encode())
	if err != nil {
		t.Fatalf("DecodeAcceptBody (empty): %v", err)
	}
	if out2.HasHello {
		t.Fatalf("expected HasHello=false, got %+v", out2)
	}
}

func TestFailBodyRoundTrip(t *testing.T) {
	out, err := DecodeFailBody(FailBody{Reason: 5, Message: "old generation"}.Encode())
	if err != nil {
		t.Fatalf("DecodeFailBody: %v", err)
	}
	if out.Reason != 5 || out.Message != "old generation" {
		t.Fatalf("got %+v", out)
	}
}

func TestHeaderRejectsOversizedFrame(t *testing.T) {
	var wire bytes.Buffer
	wire.WriteByte(byte(KindPing))
	wire.Write(encodeVarInt(MaxFrameSize + 1))
	if _, err := ReadHeader(&wire); err == nil {
		t.Fatal("expected error for oversized frame, got nil")
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, 127, 128, 16383, 16384, 2097151, 2097152} {
		encoded := encodeVarInt(v)
		got, n, err := decodeVarIntBuf(encoded)
		if err != nil {
			t.Fatalf("decodeVarIntBuf(%d): %v", v, err)
		}
		if got != v || n != len(encoded) {
			t.Fatalf("decodeVarIntBuf(%d) = %d, %d bytes; want %d, %d bytes", v, got, n, v, len(encoded))
		}
	}
}
