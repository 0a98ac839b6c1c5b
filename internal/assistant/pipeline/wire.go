// internal/assistant/pipeline/wire.go
package pipeline

import (
	"fmt"

	classifyintent "community-assistant/internal/assistant/classify-intent"
	composefallback "community-assistant/internal/assistant/compose-fallback"
	entityextraction "community-assistant/internal/assistant/entity-extraction"
	formatresponse "community-assistant/internal/assistant/format-response"
	manageconversation "community-assistant/internal/assistant/manage-conversation"
	matchfaq "community-assistant/internal/assistant/match-faq"
	matchtemplate "community-assistant/internal/assistant/match-template"
	querysandbox "community-assistant/internal/assistant/query-sandbox"
	requestclarification "community-assistant/internal/assistant/request-clarification"
	"community-assistant/internal/assistant/similarity"
	"community-assistant/internal/common/cache"
	"community-assistant/internal/common/clock"
	"community-assistant/internal/common/config"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/observability"
	"community-assistant/pkg/registry"
)

// Adapters are the storage backends a pipeline runs against. Directory and
// QueryLog may be nil.
type Adapters struct {
	Records   querysandbox.Store
	Directory entityextraction.LocationDirectory
	Cache     cache.Store
	QueryLog  QueryLog
}

// Assemble builds every stage from the assistant configuration and the
// embedded catalogs.
func Assemble(reg *registry.RecordRegistry, a Adapters, cfg config.AssistantConfig, clk clock.Clock, obs *observability.Observability, log logger.Logger) (*Pipeline, error) {
	if reg == nil || a.Records == nil || a.Cache == nil {
		return nil, fmt.Errorf("pipeline needs a registry, a record store and a cache store")
	}

	faqCatalog, err := matchfaq.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("load FAQ catalog: %w", err)
	}
	templateCatalog, err := matchtemplate.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("load template catalog: %w", err)
	}

	engine := similarity.NewEngine(cfg.Similarity.CacheSize)
	sandbox := querysandbox.New(reg, a.Records, sandboxConfig(cfg.Sandbox), log)

	var history composefallback.History
	if a.QueryLog != nil {
		history = a.QueryLog
	}

	return New(Components{
		Registry:      reg,
		FAQ:           matchfaq.NewMatcher(faqCatalog, engine, sandbox, a.Cache, clk, faqConfig(cfg.FAQ), log),
		Extractor:     entityextraction.NewExtractor(a.Directory, clk, log),
		Classifier:    classifyintent.NewClassifier(nil),
		Clarifier:     requestclarification.NewEngine(a.Cache, clk, clarificationConfig(cfg.Clarification), log),
		Templates:     matchtemplate.NewMatcher(templateCatalog, sandbox, &matchtemplate.Config{MaxCandidates: cfg.Templates.MaxCandidates}, log),
		Fallback:      composefallback.NewComposer(engine, history, a.Cache, clk, fallbackConfig(cfg.Fallback), log),
		Conversation:  manageconversation.NewManager(a.Cache, clk, conversationConfig(cfg.Conversation), log),
		Formatter:     formatresponse.NewFormatter(nil, log),
		QueryLog:      a.QueryLog,
		Observability: obs,
		Clock:         clk,
	}, nil, log), nil
}

func faqConfig(c config.FAQConfig) *matchfaq.Config {
	return &matchfaq.Config{
		FuzzyThreshold:   c.FuzzyThreshold,
		CriticalPriority: c.CriticalPriority,
		CriticalLeniency: c.CriticalLeniency,
		LegacyThreshold:  c.LegacyThreshold,
		StatsTTL:         config.GetDuration(c.StatsTTL),
		HitsTTL:          config.GetDuration(c.HitsTTL),
	}
}

func clarificationConfig(c config.ClarificationConfig) *requestclarification.Config {
	return &requestclarification.Config{
		SessionTTL: config.GetDuration(c.SessionTTL),
		MaxRounds:  c.MaxRounds,
	}
}

func sandboxConfig(c config.SandboxConfig) *querysandbox.Config {
	sc := querysandbox.LoadConfig()
	sc.MaxRows = c.MaxRows
	sc.MaxExpressionLength = c.MaxExpressionLength
	return sc
}

func fallbackConfig(c config.FallbackConfig) *composefallback.Config {
	fc := composefallback.LoadConfig()
	fc.MaxSuggestions = c.MaxSuggestions
	fc.SimilarThreshold = c.SimilarThreshold
	fc.SimilarCacheTTL = config.GetDuration(c.SimilarCacheTTL)
	fc.HistoryWindow = config.GetDuration(c.HistoryWindowDays * 24 * 60 * 60 * 1000)
	fc.MinConfidence = c.MinConfidence
	fc.HistoryLimit = c.HistoryLimit
	return fc
}

func conversationConfig(c config.ConversationConfig) *manageconversation.Config {
	return &manageconversation.Config{
		MaxHistory: c.MaxHistory,
		ContextTTL: config.GetDuration(c.ContextTTL),
		SessionTTL: config.GetDuration(c.SessionTTL),
	}
}
