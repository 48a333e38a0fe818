package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/target/console-api/internal/errors"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, "", Classify(nil))
	assert.Equal(t, "dispatch", Classify(fmt.Errorf("enqueue: %w", apperrors.Dispatch(goerrors.New("boom")))))
	assert.Equal(t, "precondition", Classify(apperrors.Precondition("Diagram not found")))
	assert.Equal(t, "errors_errorstring", Classify(fmt.Errorf("wrap: %w", goerrors.New("x"))))
	assert.Equal(t, "context_deadlineexceedederror", Classify(context.DeadlineExceeded))
}
