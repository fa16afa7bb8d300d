package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVehicleQuery(t *testing.T) {
	q, err := NewVehicleQuery("", " tmbjj7ne8j0123456 ", " key ")
	require.NoError(t, err)
	assert.Equal(t, "TMBJJ7NE8J0123456", q.VIN)
	assert.Equal(t, "STK TMBJJ7NE8J0123456", q.Name)
	assert.Equal(t, "key", q.APIKey)
	assert.True(t, q.HasCredential())
	assert.NotContains(t, q.String(), "key")

	for _, vin := range []string{"", "SHORT", "TMBJJ7NE8J01234567", "TMBJJ7NE8J012345-", "TMBJJ7NE8J01234Ž5"} {
		_, err := NewVehicleQuery("car", vin, "")
		assert.ErrorIs(t, err, ErrInvalidVIN, vin)
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := fmt.Errorf("refresh: %w", WrapError(KindTransport, base, "request failed"))

	assert.Equal(t, KindTransport, KindOf(err))
	assert.ErrorIs(t, err, &Error{Kind: KindTransport})
	assert.ErrorIs(t, err, base)
	assert.NotErrorIs(t, err, &Error{Kind: KindTimeout})
	assert.Equal(t, ErrorKind(""), KindOf(base))

	e := HTTPError(503)
	assert.Equal(t, "http-error (HTTP 503): unexpected upstream status", e.Error())

	mc := MissingCredential("https://reg", "https://doc")
	got, ok := AsError(mc)
	require.True(t, ok)
	assert.Equal(t, KindMissingCredential, got.Kind)
	assert.Equal(t, MissingCredentialMessage, got.Message)
	assert.NotEmpty(t, got.RegistrationURL)
	assert.NotEmpty(t, got.DocumentationURL)
}

func TestCatalogIsConsistent(t *testing.T) {
	seen := map[FieldKey]bool{}
	full := &Snapshot{}
	for _, spec := range Catalog() {
		assert.False(t, seen[spec.Key], "duplicate key %s", spec.Key)
		seen[spec.Key] = true
		assert.NotEmpty(t, spec.Name, spec.Key)
		assert.NotEmpty(t, spec.Icon, spec.Key)

		got, ok := Lookup(spec.Key)
		require.True(t, ok)
		assert.Equal(t, spec.Key, got.Key)

		if spec.Kind.Numeric() || spec.Kind == ValueDate {
			assert.Nil(t, spec.ValueOf(full), "%s must be unknown on an empty snapshot", spec.Key)
		}
	}

	_, ok := Lookup("nope")
	assert.False(t, ok)
	assert.Nil(t, (&Snapshot{}).Value("nope"))
}

func TestChangedFields(t *testing.T) {
	date := "2026-03-15"
	days := 10
	weight := 1200.0

	prev := &Snapshot{ValidUntil: &date, DaysRemaining: &days, Status: StatusWarning, Weight: &weight, Brand: "ŠKODA"}
	assert.NotEmpty(t, ChangedFields(nil, prev))

	same := *prev
	same.Brand = "VW" // untracked
	assert.Empty(t, ChangedFields(prev, &same))

	days2 := 9
	next := *prev
	next.DaysRemaining = &days2
	next.Weight = nil
	assert.Equal(t, []FieldKey{FieldDaysRemaining, FieldWeight}, ChangedFields(prev, &next))
}
