package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/sheet-reservation/internal/model"
)

func TestApplyFlags(t *testing.T) {
	cases := []struct {
		name           string
		ev             model.Event
		public, closed bool
		want           model.Event
		err            error
	}{
		{"publish draft", model.Event{}, true, false, model.Event{Public: true}, nil},
		{"unpublish", model.Event{Public: true}, false, false, model.Event{}, nil},
		{"close draft", model.Event{}, false, true, model.Event{Closed: true}, nil},
		{"close and publish draft closes", model.Event{}, true, true, model.Event{Closed: true}, nil},
		{"close public", model.Event{Public: true}, false, true, model.Event{Public: true}, ErrCannotClosePublic},
		{"close and publish public", model.Event{Public: true}, true, true, model.Event{Public: true}, ErrCannotClosePublic},
		{"reopen closed", model.Event{Closed: true}, true, false, model.Event{Closed: true}, ErrCannotEditClosed},
		{"touch closed", model.Event{Closed: true}, false, true, model.Event{Closed: true}, ErrCannotEditClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ApplyFlags(tc.ev, tc.public, tc.closed)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}
