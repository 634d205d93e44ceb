package errs

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFieldAccessError_Message(t *testing.T) {
	err := &FieldAccessError{Path: []string{"partner", "name"}, Segment: "partner"}
	assert.Equal(t, `field "partner" is absent in path "partner.name"`, err.Error())
}

func TestTraversalError_UnwrapsCause(t *testing.T) {
	cause := &FieldAccessError{Path: []string{"animals"}, Segment: "animals"}
	err := pkgerrors.Wrap(&TraversalError{Hop: "animals", Parent: 1, Cause: cause}, "drain")

	var traversal *TraversalError
	assert.True(t, errors.As(err, &traversal))
	var access *FieldAccessError
	assert.True(t, errors.As(err, &access))
	assert.Equal(t, "animals", access.Segment)
}

func TestComparisonError_Message(t *testing.T) {
	err := &ComparisonError{Operator: ">", Left: "a", Right: 1}
	assert.Equal(t, `cannot apply ">" to string and int`, err.Error())
}

func TestDatasetNotFoundError_Message(t *testing.T) {
	assert.Equal(t, `dataset "farmers" not found`, (&DatasetNotFoundError{Dataset: "farmers"}).Error())
}
