package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiError(code string, fault smithy.ErrorFault) error {
	return &smithy.GenericAPIError{Code: code, Message: "test", Fault: fault}
}

func TestClassify_PermanentCodes(t *testing.T) {
	for _, code := range []string{"AccessDenied", "UnauthorizedOperation", "InvalidParameterValue", "ValidationError"} {
		err := Classify("create", "vpc", apiError(code, smithy.FaultClient))
		assert.True(t, IsPermanent(err), code)
		assert.False(t, IsTransient(err), code)
	}
}

func TestClassify_ThrottlingIsTransient(t *testing.T) {
	err := Classify("create", "vpc", apiError("ThrottlingException", smithy.FaultClient))
	assert.False(t, IsPermanent(err))
	assert.True(t, IsTransient(err))
}

func TestClassify_ServerFaultIsTransient(t *testing.T) {
	err := Classify("create", "vpc", apiError("InternalError", smithy.FaultServer))
	assert.True(t, IsTransient(err))
}

func TestClassify_UnknownClientFaultIsPermanent(t *testing.T) {
	err := Classify("create", "vpc", apiError("SomethingOdd", smithy.FaultClient))
	assert.True(t, IsPermanent(err))
}

func TestClassify_PlainErrorDefaultsTransient(t *testing.T) {
	err := Classify("create", "vpc", errors.New("connection reset by peer"))
	assert.True(t, IsTransient(err))
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, Classify("create", "vpc", nil))
}

func TestClassify_PreservesCause(t *testing.T) {
	cause := apiError("AccessDenied", smithy.FaultClient)
	err := Classify("delete", "role", cause)

	require.Error(t, err)
	assert.ErrorContains(t, err, "delete role")
	assert.ErrorContains(t, err, "permanent")

	var ae smithy.APIError
	assert.ErrorAs(t, err, &ae)
}

func TestIsTransient_MessageHeuristics(t *testing.T) {
	tests := []struct {
		msg       string
		transient bool
	}{
		{"request was throttled", true},
		{"Rate exceeded", true},
		{"dial tcp: i/o timeout", true},
		{"service unavailable", true},
		{"no such bucket", false},
		{"invalid credentials", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(fmt.Errorf("%s", tt.msg)))
		})
	}
}

func TestIsTransient_NilIsNot(t *testing.T) {
	assert.False(t, IsTransient(nil))
}
