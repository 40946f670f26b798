package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapToWireMessage_Keeps_Sentinel_Text(t *testing.T) {
	req := require.New(t)

	// Wrapped sentinels keep their stable wire text
	err := fmt.Errorf("%w: channel general", ErrUnauthorized)
	req.Equal(ErrUnauthorized.Error(), MapToWireMessage(err))

	err = fmt.Errorf("%w: disk on fire", ErrPersistenceFailed)
	req.Equal(ErrPersistenceFailed.Error(), MapToWireMessage(err))
}

func TestMapToWireMessage_Hides_Internal_Errors(t *testing.T) {
	req := require.New(t)

	// Anything that is not a known sentinel never reaches the client verbatim
	req.Equal("internal error", MapToWireMessage(fmt.Errorf("badger: txn conflict at level 3")))
	req.Equal("internal error", MapToWireMessage(fmt.Errorf("%w", ErrWorkerPanic)))
}
