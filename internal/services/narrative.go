package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

const adviceFallback = "Personalised advice is unavailable right now. Keep monitoring your glucose and review the statistics above with your doctor."

// Narrative is either generated text or a templated fallback
type Narrative struct {
	Text   string
	Source domain.MessageSource
}

func generated(text string) Narrative {
	return Narrative{Text: text, Source: domain.SourceGenerated}
}

func fallback(text string) Narrative {
	return Narrative{Text: text, Source: domain.SourceFallback}
}

type NarrativeConfig struct {
	Model          string
	Temperature    float32
	AlertMaxTokens int
	AdviceTokens   int
	Timeout        time.Duration
}

// NarrativeGenerator turns alerts and statistics into text. It never returns an
// error: collaborator failures degrade to templated sentences.
type NarrativeGenerator struct {
	gen domain.TextGenerator
	cfg NarrativeConfig
}

// NewNarrativeGenerator creates a generator; gen may be nil, in which case
// every narrative is a fallback.
func NewNarrativeGenerator(gen domain.TextGenerator, cfg NarrativeConfig) *NarrativeGenerator {
	return &NarrativeGenerator{gen: gen, cfg: cfg}
}

// AlertMessage describes the most recent alert. alerts must not be empty.
func (n *NarrativeGenerator) AlertMessage(ctx context.Context, userName string, alerts []domain.AlertEvent, stats *domain.Statistics) Narrative {
	latest, ok := domain.LatestAlert(alerts)
	if !ok {
		return Narrative{}
	}

	text, err := n.generate(ctx, buildAlertPrompt(userName, latest, stats), n.cfg.AlertMaxTokens)
	if err != nil {
		logger.Warn("Alert narrative generation failed, using fallback", "error", err, "alert_type", latest.Type)
		return fallback(FallbackAlertMessage(alerts, stats))
	}
	return generated(text)
}

// TrendAdvice produces multi-day management advice
func (n *NarrativeGenerator) TrendAdvice(ctx context.Context, userName string, stats *domain.Statistics, patterns *domain.PatternSummary) Narrative {
	text, err := n.generate(ctx, buildAdvicePrompt(userName, stats, patterns), n.cfg.AdviceTokens)
	if err != nil {
		logger.Warn("Trend advice generation failed, using fallback", "error", err)
		return fallback(adviceFallback)
	}
	return generated(text)
}

func (n *NarrativeGenerator) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if n.gen == nil {
		return "", fmt.Errorf("no text generator configured")
	}
	if n.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	// Buffered so the call can finish after we stop waiting on it.
	done := make(chan result, 1)
	go func() {
		text, err := n.gen.GenerateText(ctx, domain.TextRequest{
			Prompt:      prompt,
			Model:       n.cfg.Model,
			Temperature: n.cfg.Temperature,
			MaxTokens:   maxTokens,
		})
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		text := strings.TrimSpace(stripThinking(res.text))
		if text == "" {
			return "", fmt.Errorf("empty response")
		}
		return text, nil
	}
}

// stripThinking drops <think>...</think> blocks emitted by reasoning models
func stripThinking(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start:], "</think>")
		if end < 0 {
			return s[:start]
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
}

// FallbackAlertMessage picks a sentence by alert priority: low, high, rapid drop, rapid rise.
func FallbackAlertMessage(alerts []domain.AlertEvent, stats *domain.Statistics) string {
	has := make(map[domain.AlertType]domain.AlertEvent, len(alerts))
	for _, a := range alerts {
		has[a.Type] = a
	}

	if a, ok := has[domain.AlertLowGlucose]; ok {
		value := a.Value
		if stats != nil {
			value = stats.Min
		}
		return fmt.Sprintf("Low blood glucose detected, minimum value %.1f mmol/L, please take action now.", value)
	}
	if a, ok := has[domain.AlertHighGlucose]; ok {
		value := a.Value
		if stats != nil {
			value = stats.Max
		}
		return fmt.Sprintf("High blood glucose detected, maximum value %.1f mmol/L, please watch your diet and medication.", value)
	}
	if _, ok := has[domain.AlertRapidDrop]; ok {
		return "Blood glucose is dropping rapidly, please monitor it closely."
	}
	if _, ok := has[domain.AlertRapidRise]; ok {
		return "Blood glucose is rising rapidly, please check what you ate and consider light exercise."
	}
	return ""
}

func buildAlertPrompt(userName string, a domain.AlertEvent, stats *domain.Statistics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a blood glucose alert for a diabetes patient named %s.\n\n", displayName(userName))
	fmt.Fprintf(&b, "Alert type: %s\nSeverity: %s\n", a.Type, a.Severity)

	switch a.Type {
	case domain.AlertLowGlucose:
		fmt.Fprintf(&b, "Glucose %.1f mmol/L is below the target of %.1f mmol/L at %s.\n",
			a.Value, a.Threshold, a.Timestamp.Format(time.RFC3339))
	case domain.AlertHighGlucose:
		fmt.Fprintf(&b, "Glucose %.1f mmol/L is above the target of %.1f mmol/L at %s.\n",
			a.Value, a.Threshold, a.Timestamp.Format(time.RFC3339))
	case domain.AlertRapidDrop, domain.AlertRapidRise:
		direction := "rising"
		if a.Type == domain.AlertRapidDrop {
			direction = "dropping"
		}
		fmt.Fprintf(&b, "Glucose is %s at %.1f mmol/L per hour", direction, a.Value)
		if a.FromValue != nil && a.ToValue != nil && a.FromTime != nil && a.ToTime != nil {
			fmt.Fprintf(&b, ", from %.1f to %.1f mmol/L over %.1f hours",
				*a.FromValue, *a.ToValue, a.ToTime.Sub(*a.FromTime).Hours())
		}
		fmt.Fprintf(&b, ", ending at %s.\n", a.Timestamp.Format(time.RFC3339))
	}

	if stats != nil {
		fmt.Fprintf(&b, "Window: %d readings, average %.1f, min %.1f, max %.1f mmol/L.\n",
			stats.Count, stats.Average, stats.Min, stats.Max)
	}

	b.WriteString("\nIn under 100 words describe the current state, the possible risk and the action to take. Use plain language.")
	return b.String()
}

func buildAdvicePrompt(userName string, stats *domain.Statistics, p *domain.PatternSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prepare a blood glucose report with management advice for a diabetes patient named %s.\n\n", displayName(userName))

	if stats != nil {
		b.WriteString("Statistics:\n")
		fmt.Fprintf(&b, "- average %.1f mmol/L, max %.1f, min %.1f, readings %d\n",
			stats.Average, stats.Max, stats.Min, stats.Count)
	}
	if p != nil {
		fmt.Fprintf(&b, "- standard deviation %.2f mmol/L\n", p.StandardDeviation)
		fmt.Fprintf(&b, "- in range %.1f%%, above %.1f%%, below %.1f%%\n", p.InRangePercent, p.HighPercent, p.LowPercent)
		b.WriteString("Patterns:\n")
		fmt.Fprintf(&b, "- morning %.1f, afternoon %.1f, evening %.1f mmol/L\n",
			p.MorningAverage, p.AfternoonAverage, p.EveningAverage)
		fmt.Fprintf(&b, "- fasting %.1f, postprandial %.1f mmol/L\n", p.FastingAverage, p.PostprandialAverage)
		fmt.Fprintf(&b, "- day-to-day variability %.1f mmol/L\n", p.DailyVariability)
		fmt.Fprintf(&b, "- high readings %d, low readings %d\n", p.HighFrequency, p.LowFrequency)
	}

	b.WriteString("\nGive: 1) an overall assessment (good, fair, needs improvement); 2) the specific problems; " +
		"3) targeted suggestions on diet, exercise and medication, noting they must be confirmed with a doctor; " +
		"4) what to watch when monitoring over the next days. Avoid medical jargon.")
	return b.String()
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "the patient"
	}
	return name
}
