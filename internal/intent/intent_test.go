package intent

import (
	"strings"
	"testing"
	"time"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/forecast"
)

func liveData() *LiveData {
	base := time.Date(2026, 3, 12, 12, 0, 0, 0, time.UTC)
	points := []forecast.Point{
		{Timestamp: base, Hour: "12:00", Price: 0.30, CO2: 350},
		{Timestamp: base.Add(time.Hour), Hour: "13:00", Price: 0.28, CO2: 300},
		{Timestamp: base.Add(2 * time.Hour), Hour: "14:00", Price: 0.22, CO2: 260},
		{Timestamp: base.Add(3 * time.Hour), Hour: "15:00", Price: 0.35, CO2: 400},
	}
	return &LiveData{
		Price:        0.29,
		CO2:          320,
		Mix:          map[string]float64{"solar": 42, "wind": 28},
		AveragePrice: 0.30,
		Forecast:     points,
	}
}

func TestClassifyCheapestHourQuery(t *testing.T) {
	c := Default()
	m, ok := c.Classify("Wann ist Strom am günstigsten?")
	if !ok {
		t.Fatal("Expected a match")
	}
	if m.Intent.ID != "cheapest_hour" {
		t.Errorf("Expected cheapest_hour, got %s", m.Intent.ID)
	}
	if m.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %v", m.Confidence)
	}

	answer := m.Intent.Answer(liveData())
	if !strings.Contains(answer, "14:00") {
		t.Errorf("Expected answer to name the cheapest hour 14:00, got %q", answer)
	}
	if !strings.Contains(answer, "0.2200") {
		t.Errorf("Expected answer to carry the price, got %q", answer)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	c := Default()
	_, ok := c.Classify("Erkläre mir die Energiewende im Detail")
	if ok {
		t.Error("Expected no match for an open question")
	}
}

func TestClassifyEmptyQuery(t *testing.T) {
	c := Default()
	if _, ok := c.Classify("   "); ok {
		t.Error("Expected no match for blank input")
	}
}

func TestClassifyIdempotence(t *testing.T) {
	c := Default()
	query := "Soll ich mein E-Auto jetzt laden?"
	m1, ok1 := c.Classify(query)
	m2, ok2 := c.Classify(query)
	if ok1 != ok2 || m1.Intent.ID != m2.Intent.ID || m1.Confidence != m2.Confidence {
		t.Errorf("Classification not idempotent: (%v,%v) vs (%v,%v)", m1, ok1, m2, ok2)
	}
	if m1.Intent.ID != "charge_advice" {
		t.Errorf("Expected charge_advice, got %s", m1.Intent.ID)
	}
}

func TestTieBreakFirstRegisteredWins(t *testing.T) {
	first := &Intent{ID: "first", Keywords: [][]string{{"solar"}}}
	second := &Intent{ID: "second", Keywords: [][]string{{"solar"}}}
	c := NewClassifier(first, second)

	for i := 0; i < 10; i++ {
		m, ok := c.Classify("wie viel solar haben wir?")
		if !ok {
			t.Fatal("Expected a match")
		}
		if m.Intent.ID != "first" {
			t.Fatalf("Tie must resolve to the first-registered intent, got %s", m.Intent.ID)
		}
	}
}

func TestPartialKeywordConfidence(t *testing.T) {
	in := &Intent{ID: "partial", Keywords: [][]string{{"preis", "morgen"}}}
	c := NewClassifier(in)

	m, ok := c.Classify("wie ist der preis?")
	if !ok {
		t.Fatal("Expected a partial match")
	}
	if m.Confidence != 0.5 {
		t.Errorf("Expected confidence 0.5 for 1 of 2 keywords, got %v", m.Confidence)
	}
}

func TestPhraseBeatsKeywords(t *testing.T) {
	c := Default()
	m, ok := c.Classify("Wie ist der aktuelle Strompreis?")
	if !ok {
		t.Fatal("Expected a match")
	}
	if m.Intent.ID != "price_info" || m.Confidence != 1.0 {
		t.Errorf("Expected price_info at 1.0, got %s at %v", m.Intent.ID, m.Confidence)
	}
}

func TestGreenestAnswer(t *testing.T) {
	c := Default()
	m, ok := c.Classify("Ist der Strom gerade grün?")
	if !ok || m.Intent.ID != "greenest_hour" {
		t.Fatalf("Expected greenest_hour match, got %+v ok=%v", m, ok)
	}
	answer := m.Intent.Answer(liveData())
	if !strings.Contains(answer, "14:00") {
		t.Errorf("Expected greenest hour 14:00 in answer, got %q", answer)
	}
}

func TestDeviceAdviceSavings(t *testing.T) {
	data := liveData()
	// Washing at 0.29 now vs 0.22 at 14:00 with 2 kWh saves 0.14 EUR.
	answer := deviceAdvice(data, "Waschmaschine", 2.0)
	if !strings.Contains(answer, "besser um 14:00") {
		t.Errorf("Expected wait advice, got %q", answer)
	}

	data.Price = 0.23
	answer = deviceAdvice(data, "Waschmaschine", 2.0)
	if !strings.Contains(answer, "kann jetzt laufen") {
		t.Errorf("Expected run-now advice for marginal savings, got %q", answer)
	}
}

func TestAnswersWithoutForecast(t *testing.T) {
	data := &LiveData{Price: 0.29, CO2: 320}
	for _, fn := range []AnswerFunc{cheapestHour, mostExpensiveHour, greenestHour} {
		if got := fn(data); got != noForecastAnswer {
			t.Errorf("Expected no-forecast answer, got %q", got)
		}
	}
}
