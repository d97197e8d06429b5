package stages

import (
	"log/slog"

	"github.com/anatolykoptev/go_book/internal/engine"
)

// Select picks the backend for a run: the LLM backend when the model is
// configured and a completer is available, the simplified one otherwise.
func Select(cfg engine.Config, c engine.Completer, log *slog.Logger) Backend {
	if cfg.CapableLLM() && c != nil {
		return NewLLMBackend(c)
	}
	engine.OrDefault(log).Info("LLM not configured, using simplified backend")
	return NewSimplifiedBackend()
}
