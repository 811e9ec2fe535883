package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/forecast"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/history"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/intent"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/metrics"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/store"
)

// Answer modes. Every query terminates in exactly one of these.
const (
	ModeInstant = "instant"
	ModeAI      = "ai"
	ModeError   = "error"
)

const fallbackAnswer = "Entschuldigung, ich konnte deine Frage gerade nicht beantworten. " +
	"Versuche konkretere Fragen wie 'Wann ist Strom günstig?' oder 'Soll ich jetzt laden?'"

// Answer is the result of one query. Transient, never persisted.
type Answer struct {
	Text       string
	Mode       string
	Query      string
	Elapsed    time.Duration
	Confidence float64
}

// Generator is the escalation backend contract.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assistant routes queries: rule-based classification first, generative
// escalation for everything below the confidence threshold. Ask never
// fails; escalation errors degrade into a fixed fallback answer.
type Assistant struct {
	classifier *intent.Classifier
	generator  Generator
	store      *store.Store
	forecaster *forecast.Generator
	hist       *history.History
	threshold  float64
	logger     *slog.Logger
}

// New creates an assistant.
func New(classifier *intent.Classifier, generator Generator, s *store.Store, f *forecast.Generator, h *history.History, threshold float64, logger *slog.Logger) *Assistant {
	return &Assistant{
		classifier: classifier,
		generator:  generator,
		store:      s,
		forecaster: f,
		hist:       h,
		threshold:  threshold,
		logger:     logger,
	}
}

// Ask answers a user query. The state machine per query is
// classify -> instant, or classify -> escalate -> ai, or
// classify -> escalate -> error. There is no retry within one query.
func (a *Assistant) Ask(ctx context.Context, query string) Answer {
	start := time.Now()
	data := a.snapshot()

	if m, ok := a.classifier.Classify(query); ok && m.Confidence >= a.threshold {
		text := m.Intent.Answer(data)
		metrics.AssistantAnswers.WithLabelValues(ModeInstant).Inc()
		return Answer{
			Text:       text,
			Mode:       ModeInstant,
			Query:      query,
			Elapsed:    time.Since(start),
			Confidence: m.Confidence,
		}
	}

	text, err := a.escalate(ctx, query, data)
	if err != nil {
		a.logger.Warn("escalation failed, serving fallback answer", "error", err)
		metrics.AssistantAnswers.WithLabelValues(ModeError).Inc()
		return Answer{Text: fallbackAnswer, Mode: ModeError, Query: query, Elapsed: time.Since(start)}
	}

	metrics.AssistantAnswers.WithLabelValues(ModeAI).Inc()
	return Answer{Text: text, Mode: ModeAI, Query: query, Elapsed: time.Since(start)}
}

// snapshot assembles the live data answers and prompts draw from.
func (a *Assistant) snapshot() *intent.LiveData {
	entry := a.store.Grid()
	data := &intent.LiveData{
		Price:    entry.Reading.Price,
		CO2:      entry.Reading.CO2,
		Mix:      entry.Reading.EnergyMix,
		Forecast: a.forecaster.Series(forecast.DefaultHours),
	}
	if a.hist != nil {
		data.AveragePrice = a.hist.Stats().AveragePrice
	}
	return data
}

func (a *Assistant) escalate(ctx context.Context, query string, data *intent.LiveData) (string, error) {
	timer := time.Now()
	text, err := a.generator.Generate(ctx, buildPrompt(query, data))
	metrics.EscalationLatency.Observe(time.Since(timer).Seconds())
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}

// buildPrompt embeds a compact snapshot of the grid state so the model
// answers with real numbers instead of guessing.
func buildPrompt(query string, data *intent.LiveData) string {
	var b strings.Builder
	b.WriteString("Du bist ein Energie-Assistent für ein Smart Home System.\n\n")
	b.WriteString("Aktuelle Stromdaten:\n")
	fmt.Fprintf(&b, "- Preis: %.4f €/kWh\n", data.Price)
	fmt.Fprintf(&b, "- CO2-Intensität: %.1f g/kWh\n", data.CO2)
	fmt.Fprintf(&b, "- Energiemix: Solar %.0f%%, Wind %.0f%%, Kohle %.0f%%\n",
		data.Mix["solar"], data.Mix["wind"], data.Mix["coal"])

	if cheapest, ok := forecast.Cheapest(data.Forecast); ok {
		fmt.Fprintf(&b, "\nGünstigste Zeit heute: %s (%.4f €/kWh)\n", cheapest.Hour, cheapest.Price)
	}
	if greenest, ok := forecast.Greenest(data.Forecast); ok {
		fmt.Fprintf(&b, "Grünste Zeit heute: %s (%.1f g/kWh)\n", greenest.Hour, greenest.CO2)
	}

	fmt.Fprintf(&b, "\nNutzerfrage: %s\n\n", query)
	b.WriteString("Antworte kurz, freundlich und konkret (max. 3 Sätze). Nutze die Daten oben.")
	return b.String()
}
