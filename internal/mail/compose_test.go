package mail

import (
	"strings"
	"testing"

	"github.com/spec-kit/case-service/internal/mailparse"
)

func TestComposeThreadingHeaders(t *testing.T) {
	raw, err := Compose("box@example.com", OutgoingMessage{
		To:         "care@shop.test",
		Subject:    "Re: Broken kettle",
		Body:       "Any update?",
		InReplyTo:  "m2@mail",
		References: []string{"m1@mail", "m2@mail"},
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	text := string(raw)
	for _, want := range []string{
		"In-Reply-To: <m2@mail>",
		"References: <m1@mail> <m2@mail>",
		"Subject: Re: Broken kettle",
		"care@shop.test",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("composed message missing %q", want)
		}
	}
}

func TestComposeAttachment(t *testing.T) {
	raw, err := Compose("box@example.com", OutgoingMessage{
		To:          "care@shop.test",
		Subject:     "Receipt",
		Body:        "attached",
		Attachments: []Attachment{{Filename: "receipt.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}},
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(string(raw), "receipt.jpg") {
		t.Fatal("attachment filename missing")
	}
}

func TestComposeRequiresRecipient(t *testing.T) {
	if _, err := Compose("box@example.com", OutgoingMessage{Subject: "x"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestRawMessageSentBy(t *testing.T) {
	labelled := RawMessage{LabelIDs: []string{"INBOX", "SENT"}}
	if !labelled.SentBy("") {
		t.Fatal("SENT label ignored")
	}
	fromBox := RawMessage{Headers: mailparse.Headers{{Name: "From", Value: "Box <BOX@example.com>"}}}
	if !fromBox.SentBy("box@example.com") {
		t.Fatal("own address not detected")
	}
	if fromBox.SentBy("") {
		t.Fatal("empty mailbox must not match")
	}
}
