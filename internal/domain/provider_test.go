package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

func validProvider() domain.ProviderConfig {
	return domain.ProviderConfig{
		Name:        "groq",
		Kind:        domain.ProviderGroq,
		Priority:    1,
		APIKey:      "k",
		Model:       "llama-3.1-8b-instant",
		CallTimeout: 10 * time.Second,
		MaxRetries:  2,
		BackoffBase: 100 * time.Millisecond,
		BackoffMax:  time.Second,
	}
}

func TestProviderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.ProviderConfig)
		wantErr bool
	}{
		{"valid", func(*domain.ProviderConfig) {}, false},
		{"missing name", func(p *domain.ProviderConfig) { p.Name = " " }, true},
		{"missing key", func(p *domain.ProviderConfig) { p.APIKey = "" }, true},
		{"missing model", func(p *domain.ProviderConfig) { p.Model = "" }, true},
		{"zero timeout", func(p *domain.ProviderConfig) { p.CallTimeout = 0 }, true},
		{"negative retries", func(p *domain.ProviderConfig) { p.MaxRetries = -1 }, true},
		{"negative backoff", func(p *domain.ProviderConfig) { p.BackoffBase = -1 }, true},
		{"unknown kind", func(p *domain.ProviderConfig) { p.Kind = "cohere" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProvider()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProviderConfig_WorstCaseLatency(t *testing.T) {
	p := validProvider()
	// 3 attempts * 10s + 100ms + 200ms of backoff
	assert.Equal(t, 30*time.Second+300*time.Millisecond, p.WorstCaseLatency())

	p.BackoffMax = 150 * time.Millisecond
	assert.Equal(t, 30*time.Second+250*time.Millisecond, p.WorstCaseLatency())
}

type named struct {
	name string
	prio int
}

func (n named) Name() string  { return n.name }
func (n named) Priority() int { return n.prio }

func TestSortProviders(t *testing.T) {
	ps := []named{{"c", 2}, {"b", 1}, {"a", 2}, {"z", 0}}
	domain.SortProviders(ps)
	assert.Equal(t, []named{{"z", 0}, {"b", 1}, {"a", 2}, {"c", 2}}, ps)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, domain.RoleUser.Valid())
	assert.True(t, domain.RoleAssistant.Valid())
	assert.False(t, domain.Role("system").Valid())
}

func TestAnalysisResult_Clone(t *testing.T) {
	r := domain.AnalysisResult{StructuredPoints: []string{"a"}}
	c := r.Clone()
	c.StructuredPoints[0] = "b"
	assert.Equal(t, "a", r.StructuredPoints[0])
}
