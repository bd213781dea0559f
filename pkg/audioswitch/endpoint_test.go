package audioswitch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestListEndpoints(t *testing.T) {
	f, _, _ := newDeskAndHeadset()
	session := &fakeSession{endpoints: f}
	logger := zaptest.NewLogger(t).Sugar()

	visible, err := listEndpoints(logger, session.opener(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"desk-mic", "speakers"}, endpointIDs(visible))
	assert.True(t, session.isClosed())

	all, err := listEndpoints(logger, session.opener(), true)
	require.NoError(t, err)

	// inputs first, then outputs
	assert.Equal(t, []string{"desk-mic", "headset-mic", "speakers", "headphones"}, endpointIDs(all))
}

func TestListEndpointsPropagatesErrors(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	failing := func(*zap.SugaredLogger) (AudioSession, error) {
		return nil, errUnsupportedPlatform
	}

	_, err := listEndpoints(logger, failing, false)
	assert.True(t, errors.Is(err, errUnsupportedPlatform))

	f := newFakeEndpoints()
	f.failList = true
	session := &fakeSession{endpoints: f}

	_, err = listEndpoints(logger, session.opener(), false)

	enumerationErr := &EnumerationError{}
	assert.True(t, errors.As(err, &enumerationErr))
	assert.True(t, session.isClosed())
}

func TestSwitchOnce(t *testing.T) {
	f, _, headset := newDeskAndHeadset()
	session := &fakeSession{endpoints: f}

	require.NoError(t, switchOnce(zaptest.NewLogger(t).Sugar(), session.opener(), headset))

	assert.ElementsMatch(t, []string{"headset-mic", "headphones"}, f.visibleIDs())
	assert.True(t, session.isClosed())
}

func endpointIDs(refs []EndpointRef) []string {
	ids := []string{}
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}

	return ids
}
