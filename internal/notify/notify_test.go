package notify

import (
	"context"
	"strings"
	"testing"
)

func TestRenderHTMLEscapesAndIncludesCTA(t *testing.T) {
	msg := Message{
		To:          "vol@example.com",
		Subject:     "You're in",
		Heading:     "See you at <Beach Cleanup>",
		BodyLines:   []string{"Line one", "Bring gloves & water"},
		CTA:         &CTA{Label: "View event", URL: "https://canopy.test/events/1"},
		PreviewText: "Signup confirmed",
	}
	html, err := RenderHTML(msg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "See you at &lt;Beach Cleanup&gt;") {
		t.Fatalf("heading should be escaped: %s", html)
	}
	if !strings.Contains(html, "Bring gloves &amp; water") {
		t.Fatal("body line missing")
	}
	if !strings.Contains(html, "https://canopy.test/events/1") || !strings.Contains(html, "View event") {
		t.Fatal("cta missing")
	}
	if !strings.Contains(html, "Signup confirmed") {
		t.Fatal("preview text missing")
	}
}

func TestRenderTextWithoutCTA(t *testing.T) {
	text := RenderText(Message{Heading: "Hi", BodyLines: []string{"a", "b"}})
	if text != "Hi\n\na\nb\n" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestBuildMessageRequiresRecipient(t *testing.T) {
	if _, err := buildMessage("from@example.com", Message{Subject: "x"}); err == nil {
		t.Fatal("expected error for empty recipient")
	}
	if _, err := buildMessage("from@example.com", Message{To: "a@example.com", Subject: "x", Heading: "h"}); err != nil {
		t.Fatalf("build: %v", err)
	}
}

func TestNopPublisherAndLogMailer(t *testing.T) {
	if err := (NopPublisher{}).Publish(context.Background(), Activity{Type: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := (LogMailer{}).Send(context.Background(), Message{To: "a@example.com"}); err != nil {
		t.Fatal(err)
	}
}
