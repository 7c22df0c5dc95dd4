package annlsh

import (
	"crypto/rand"
	"errors"
	"fmt"

	idxerrors "github.com/vectorhash/annlsh/internal/errors"
)

// These thin wrappers let the store backends and Index raise the structured
// IndexError taxonomy of internal/errors without pkg/annlsh importing the
// package under an awkward alias at every call site.

func StorageFailureErr(message string, cause error) error {
	return idxerrors.StorageFailure(message, cause)
}

func CorruptParamsErr(message string, cause error) error {
	e := idxerrors.New(idxerrors.ErrCodeCorruptParams, message, cause)
	return e
}

func dimensionMismatchErr(expected, got int) error {
	return idxerrors.DimensionMismatch(expected, got)
}

func alreadyInitialisedErr() error {
	return idxerrors.AlreadyInitialised()
}

func uninitialisedErr() error {
	return idxerrors.Uninitialised()
}

func mapperMissErr(id VectorId) error {
	return idxerrors.MapperMiss(string(id))
}

func mapperFailureErr(id VectorId, cause error) error {
	return idxerrors.MapperFailure(string(id), cause)
}

func validationErr(format string, args ...any) error {
	return idxerrors.ValidationError(fmt.Sprintf(format, args...), nil)
}

// idxErrIsMapperMiss reports whether err, after translation by
// translateMapperErr, is the MapperMiss (as opposed to MapperFailure)
// variant.
func idxErrIsMapperMiss(err error) bool {
	return idxerrors.GetCode(err) == idxerrors.ErrCodeMapperMiss
}

// isMapperMissSentinel reports whether a raw error returned from a
// caller's Mapper.Resolve is the ErrMapperMiss sentinel (wrapped or bare).
func isMapperMissSentinel(err error) bool {
	return errors.Is(err, ErrMapperMiss)
}

// randSeed draws 32 bytes of entropy from the OS CSPRNG to seed a ChaCha8
// source for sampling fresh projection matrices, grounded on the same
// ChaCha8-seeding pattern used elsewhere in the retrieval pack for
// cryptographically-sound random matrix generation.
func randSeed() [32]byte {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// crypto/rand.Read on a supported OS does not fail in practice;
		// degrade to a fixed seed rather than panic if it ever does.
		for i := range seed {
			seed[i] = byte(i)
		}
	}
	return seed
}
