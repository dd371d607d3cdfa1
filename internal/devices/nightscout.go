package devices

import (
	"context"
	"crypto/sha1" //nolint:gosec // Nightscout expects the SHA1 of API_SECRET
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

const (
	defaultNightscoutHours = 24
	maxNightscoutEntries   = 1000
)

// nightscoutEntry is one sensor glucose value from /api/v1/entries/sgv.json
type nightscoutEntry struct {
	ID        string `json:"_id"`
	SGV       int    `json:"sgv"`
	Date      int64  `json:"date"`
	Direction string `json:"direction"`
	Type      string `json:"type"`
}

// NightscoutSource reads CGM data from a user's Nightscout site.
// Params: url (required), api_secret or token, hours.
type NightscoutSource struct {
	client *resty.Client
	now    func() time.Time
}

func NewNightscoutSource(timeout time.Duration, retries int) *NightscoutSource {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")

	return &NightscoutSource{client: client, now: time.Now}
}

func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

func (s *NightscoutSource) Fetch(ctx context.Context, userID string, params map[string]any) ([]domain.RawSample, error) {
	baseURL := strings.TrimRight(paramString(params, "url"), "/")
	if baseURL == "" {
		return nil, apperrors.NewValidationError("nightscout requires a url parameter")
	}
	hours := paramInt(params, "hours", defaultNightscoutHours)
	from := s.now().Add(-time.Duration(hours) * time.Hour)

	var entries []nightscoutEntry
	req := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"find[date][$gte]": strconv.FormatInt(from.UnixMilli(), 10),
			"count":            strconv.Itoa(maxNightscoutEntries),
		}).
		SetResult(&entries)

	if token := paramString(params, "token"); token != "" {
		req.SetAuthToken(token)
	} else if secret := paramString(params, "api_secret"); secret != "" {
		req.SetHeader("API-SECRET", hashSecret(secret))
	}

	resp, err := req.Get(baseURL + "/api/v1/entries/sgv.json")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apperrors.NewExternalAPIError(
			fmt.Errorf("status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String())), TypeNightscout)
	}

	samples := make([]domain.RawSample, 0, len(entries))
	for _, e := range entries {
		if e.SGV <= 0 || e.Date <= 0 {
			continue
		}
		value := float64(e.SGV)
		samples = append(samples, domain.RawSample{
			Timestamp: time.UnixMilli(e.Date).UTC().Format(time.RFC3339Nano),
			Value:     &value,
			Unit:      domain.UnitMgDL,
		})
	}

	logger.Debug("Fetched nightscout entries", "user_id", userID, "entries", len(entries), "samples", len(samples))
	return samples, nil
}

func paramString(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func paramInt(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
