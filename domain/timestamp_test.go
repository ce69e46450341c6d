package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampParser_DefaultLayout(t *testing.T) {
	p := NewTimestampParser()

	got, err := p.Parse("lastBuildDate", "2024-03-05 07:08:09")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC), got)
	assert.Equal(t, []string{TimestampLayout}, p.Layouts())
}

func TestTimestampParser_Rejects(t *testing.T) {
	p := NewTimestampParser()

	cases := map[string]string{
		"empty":        "",
		"blank":        "   ",
		"rfc1123":      "Tue, 05 Mar 2024 07:08:09 +0000",
		"date only":    "2024-03-05",
		"bad month":    "2024-13-05 07:08:09",
		"with zone":    "2024-03-05 07:08:09 +0100",
		"iso 8601 'T'": "2024-03-05T07:08:09",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse("pubDate", value)
			require.Error(t, err)

			var dpe *DateParseError
			require.True(t, errors.As(err, &dpe))
			assert.Equal(t, "pubDate", dpe.Field)
			assert.Equal(t, value, dpe.Value)
		})
	}
}

func TestTimestampParser_FallbackLayouts(t *testing.T) {
	p := NewTimestampParser(TimestampLayout, time.RFC1123Z)

	got, err := p.Parse("pubDate", "Tue, 05 Mar 2024 07:08:09 +0100")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 6, 8, 9, 0, time.UTC), got)

	got, err = p.Parse("pubDate", " 2024-03-05 07:08:09 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC), got)
}

func TestFormatTimestamp_RoundTrip(t *testing.T) {
	in := time.Date(2023, 12, 31, 23, 59, 58, 0, time.FixedZone("X", 3600))

	s := FormatTimestamp(in)
	assert.Equal(t, "2023-12-31 22:59:58", s)

	out, err := ParseTimestamp(s)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
}
