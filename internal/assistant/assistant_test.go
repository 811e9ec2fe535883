package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/forecast"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/intent"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/store"
)

func testAssistant(gen Generator) *Assistant {
	s := store.New(nil, nil, slog.Default())
	f := forecast.NewGenerator(s)
	return New(intent.Default(), gen, s, f, nil, 0.6, slog.Default())
}

type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

func TestAskInstantAnswer(t *testing.T) {
	a := testAssistant(&fakeGenerator{err: fmt.Errorf("must not be called")})

	answer := a.Ask(context.Background(), "Wann ist Strom am günstigsten?")
	assert.Equal(t, ModeInstant, answer.Mode)
	assert.NotEmpty(t, answer.Text)
	assert.Contains(t, answer.Text, "€/kWh")
	assert.Equal(t, 1.0, answer.Confidence)
}

func TestAskEscalatesUnknownQuery(t *testing.T) {
	a := testAssistant(&fakeGenerator{text: "Die Energiewende ist der Umbau der Stromversorgung."})

	answer := a.Ask(context.Background(), "Erkläre mir die Energiewende im Detail")
	assert.Equal(t, ModeAI, answer.Mode)
	assert.Contains(t, answer.Text, "Energiewende")
}

func TestAskEscalationErrorYieldsFallback(t *testing.T) {
	a := testAssistant(&fakeGenerator{err: fmt.Errorf("backend down")})

	answer := a.Ask(context.Background(), "Erkläre mir die Energiewende im Detail")
	assert.Equal(t, ModeError, answer.Mode)
	assert.NotEmpty(t, answer.Text)
}

func TestAskEmptyCompletionYieldsFallback(t *testing.T) {
	a := testAssistant(&fakeGenerator{text: "   "})

	answer := a.Ask(context.Background(), "Erkläre mir die Energiewende im Detail")
	assert.Equal(t, ModeError, answer.Mode)
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		fmt.Fprint(w, `{"model": "falcon3:3b", "response": "Strom ist nachts günstig.", "done": true}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "falcon3:3b", 2*time.Second)
	text, err := c.Generate(context.Background(), "Wann ist Strom günstig?")
	require.NoError(t, err)
	assert.Equal(t, "Strom ist nachts günstig.", text)
}

func TestOllamaTimeoutProducesErrorMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, `{"response": "too late"}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "falcon3:3b", 50*time.Millisecond)
	a := testAssistant(c)

	start := time.Now()
	answer := a.Ask(context.Background(), "Erkläre mir die Energiewende im Detail")
	elapsed := time.Since(start)

	assert.Equal(t, ModeError, answer.Mode)
	assert.NotEmpty(t, answer.Text)
	assert.Less(t, elapsed, 400*time.Millisecond, "fallback must arrive within the timeout bound")
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "falcon3:3b", time.Second)
	_, err := c.Generate(context.Background(), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestBuildPromptCarriesSnapshot(t *testing.T) {
	data := &intent.LiveData{
		Price: 0.2855,
		CO2:   312.5,
		Mix:   map[string]float64{"solar": 42, "wind": 28, "coal": 15},
		Forecast: []forecast.Point{
			{Hour: "14:00", Price: 0.22, CO2: 260},
			{Hour: "19:00", Price: 0.35, CO2: 410},
		},
	}
	prompt := buildPrompt("Soll ich heizen?", data)
	for _, want := range []string{"0.2855", "312.5", "Solar 42%", "14:00", "Soll ich heizen?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}
