package intent

import (
	"fmt"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/forecast"
)

const noForecastAnswer = "Keine Vorhersagedaten verfügbar."

// Default returns the built-in intent set in its canonical order. The
// order matters: it is the documented tie-break.
func Default() *Classifier {
	return NewClassifier(
		&Intent{
			ID:      "price_info",
			Phrases: []string{"wie ist der strompreis", "wie ist der aktuelle strompreis", "current electricity price"},
			Keywords: [][]string{
				{"strompreis"},
				{"preis", "strom"},
				{"price", "electricity"},
			},
			Answer: priceInfo,
		},
		&Intent{
			ID:      "cheapest_hour",
			Phrases: []string{"wann ist strom am günstigsten", "wann ist strom billig"},
			Keywords: [][]string{
				{"günstig"},
				{"billig"},
				{"cheap"},
			},
			Answer: cheapestHour,
		},
		&Intent{
			ID: "expensive_hour",
			Keywords: [][]string{
				{"teuer"},
				{"expensive"},
			},
			Answer: mostExpensiveHour,
		},
		&Intent{
			ID:      "greenest_hour",
			Phrases: []string{"wann ist der strom am grünsten"},
			Keywords: [][]string{
				{"grün"},
				{"sauber"},
				{"green"},
				{"clean"},
			},
			Answer: greenestHour,
		},
		&Intent{
			ID: "co2_info",
			Keywords: [][]string{
				{"co2"},
				{"emission"},
				{"kohlendioxid"},
			},
			Answer: co2Info,
		},
		&Intent{
			ID: "charge_advice",
			Keywords: [][]string{
				{"laden"},
				{"charge"},
				{"e-auto"},
			},
			Answer: chargeAdvice,
		},
		&Intent{
			ID: "washing_advice",
			Keywords: [][]string{
				{"waschen"},
				{"waschmaschine"},
				{"wash"},
			},
			Answer: func(data *LiveData) string {
				return deviceAdvice(data, "Waschmaschine", 2.0)
			},
		},
		&Intent{
			ID: "dishwasher_advice",
			Keywords: [][]string{
				{"spülen"},
				{"spülmaschine"},
				{"geschirrspüler"},
				{"dishwasher"},
			},
			Answer: func(data *LiveData) string {
				return deviceAdvice(data, "Geschirrspüler", 1.5)
			},
		},
	)
}

func averagePrice(data *LiveData) float64 {
	if data.AveragePrice > 0 {
		return data.AveragePrice
	}
	return 0.30
}

func priceInfo(data *LiveData) string {
	avg := averagePrice(data)
	var status string
	switch {
	case data.Price < avg*0.8:
		status = "sehr günstig"
	case data.Price < avg:
		status = "günstig"
	default:
		status = "teuer"
	}
	return fmt.Sprintf("Aktueller Strompreis: %.4f €/kWh (%s)", data.Price, status)
}

func cheapestHour(data *LiveData) string {
	cheapest, ok := forecast.Cheapest(data.Forecast)
	if !ok {
		return noForecastAnswer
	}
	return fmt.Sprintf("Am günstigsten ist Strom heute um %s: %.4f €/kWh", cheapest.Hour, cheapest.Price)
}

func mostExpensiveHour(data *LiveData) string {
	expensive, ok := forecast.MostExpensive(data.Forecast)
	if !ok {
		return noForecastAnswer
	}
	return fmt.Sprintf("Am teuersten ist Strom heute um %s: %.4f €/kWh", expensive.Hour, expensive.Price)
}

func greenestHour(data *LiveData) string {
	greenest, ok := forecast.Greenest(data.Forecast)
	if !ok {
		return noForecastAnswer
	}
	return fmt.Sprintf("Am grünsten ist Strom heute um %s: %.1f g CO2/kWh", greenest.Hour, greenest.CO2)
}

func co2Info(data *LiveData) string {
	var status string
	switch {
	case data.CO2 < 200:
		status = "sehr sauber"
	case data.CO2 < 400:
		status = "mittel"
	default:
		status = "schmutzig"
	}
	return fmt.Sprintf("Aktuelle CO2-Intensität: %.1f g/kWh (%s)", data.CO2, status)
}

func chargeAdvice(data *LiveData) string {
	avg := averagePrice(data)
	if data.Price < avg*0.85 {
		return fmt.Sprintf("Jetzt laden! Aktueller Preis (%.4f €/kWh) ist günstig.", data.Price)
	}
	cheapest, ok := forecast.Cheapest(data.Forecast)
	if !ok {
		return fmt.Sprintf("Aktuell ist Strom teuer (%.4f €/kWh), aber es liegen keine Vorhersagedaten vor.", data.Price)
	}
	return fmt.Sprintf("Besser warten bis %s (%.4f €/kWh). Aktuell zu teuer.", cheapest.Hour, cheapest.Price)
}

func deviceAdvice(data *LiveData, device string, powerKWh float64) string {
	cheapest, ok := forecast.Cheapest(data.Forecast)
	if !ok {
		return noForecastAnswer
	}

	costNow := data.Price * powerKWh
	costBest := cheapest.Price * powerKWh
	savings := costNow - costBest

	if savings > 0.05 {
		return fmt.Sprintf("%s besser um %s laufen lassen. Spart %.2f € (jetzt: %.2f € vs. dann: %.2f €)",
			device, cheapest.Hour, savings, costNow, costBest)
	}
	return fmt.Sprintf("%s kann jetzt laufen. Kosten: %.2f € (kaum Unterschied zur günstigsten Zeit)", device, costNow)
}
