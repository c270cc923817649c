package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildError_Error(t *testing.T) {
	err := New(CategoryValidation, SeverityFatal, "no markdown pages found")
	require.Equal(t, "validation (fatal): no markdown pages found", err.Error())

	wrapped := Wrap(stderrors.New("boom"), CategoryRender, "render page")
	require.Equal(t, "render (error): render page: boom", wrapped.Error())
}

func TestBuildError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, CategoryFileSystem, "read page")
	require.ErrorIs(t, err, cause)
}

func TestBuildError_WithContext(t *testing.T) {
	err := New(CategoryConfig, SeverityError, "bad value").
		WithContext("key", "link_titles").
		WithContext("value", "sometimes")
	require.Equal(t, "link_titles", err.Context["key"])
	require.Equal(t, "sometimes", err.Context["value"])
}

func TestCategoryHelpers(t *testing.T) {
	err := New(CategoryResolve, SeverityWarning, "ambiguous identifier")
	require.True(t, IsCategory(err, CategoryResolve))
	require.False(t, IsCategory(err, CategoryRender))
	require.Equal(t, CategoryResolve, GetCategory(err))
	require.Equal(t, CategoryInternal, GetCategory(stderrors.New("plain")))
}
