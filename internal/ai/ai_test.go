package ai

import "testing"

func TestConfig_Configured(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Configured() {
		t.Error("default config has no key and should not be configured")
	}
	cfg.APIKey = "  "
	if cfg.Configured() {
		t.Error("blank key should not count")
	}
	cfg.APIKey = "sk-test"
	if !cfg.Configured() {
		t.Error("key set, should be configured")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	cfg.EmbeddingModel = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing embedding model should fail")
	}
}

func TestPromptMessages(t *testing.T) {
	msgs := TagsMessages("hello")
	if len(msgs) != 2 || msgs[0].Role != RoleSystem || msgs[0].Content != TagsInstruction {
		t.Fatalf("unexpected tag messages: %+v", msgs)
	}
	if msgs[1].Role != RoleUser || msgs[1].Content != "hello" {
		t.Errorf("user message = %+v", msgs[1])
	}
	if SummaryMessages("x")[0].Content != SummaryInstruction {
		t.Error("summary instruction mismatch")
	}
}
