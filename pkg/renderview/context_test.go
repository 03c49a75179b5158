package renderview

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/df07/go-progressive-renderpass/pkg/backend"
	"github.com/df07/go-progressive-renderpass/pkg/backend/mocks"
)

func TestContext_CreateReplacesExistingView(t *testing.T) {
	ctrl := gomock.NewController(t)
	handle := mocks.NewMockHandle(ctrl)

	first := backend.RenderViewDesc{Resolution: image.Point{X: 64, Y: 32}}
	second := backend.RenderViewDesc{Resolution: image.Point{X: 128, Y: 64}}

	gomock.InOrder(
		handle.EXPECT().CreateRenderView(first).Return(backend.RenderViewID(1), nil),
		handle.EXPECT().DeleteRenderView(backend.RenderViewID(1)),
		handle.EXPECT().CreateRenderView(second).Return(backend.RenderViewID(2), nil),
	)

	ctx := NewContext()
	_, ok := ctx.ID()
	assert.False(t, ok, "no view before Create")

	require.NoError(t, ctx.Create(handle, first))
	require.NoError(t, ctx.Create(handle, second))

	id, ok := ctx.ID()
	require.True(t, ok)
	assert.Equal(t, backend.RenderViewID(2), id)
	assert.Equal(t, second.Resolution, ctx.Resolution())
}

func TestContext_SetResolutionModifiesInPlace(t *testing.T) {
	ctrl := gomock.NewController(t)
	handle := mocks.NewMockHandle(ctrl)

	handle.EXPECT().CreateRenderView(gomock.Any()).Return(backend.RenderViewID(7), nil)
	handle.EXPECT().ModifyRenderView(backend.RenderViewID(7), image.Point{X: 10, Y: 20}).Return(nil)

	ctx := NewContext()
	require.NoError(t, ctx.Create(handle, backend.RenderViewDesc{}))
	require.NoError(t, ctx.SetResolution(handle, image.Point{X: 10, Y: 20}))

	id, _ := ctx.ID()
	assert.Equal(t, backend.RenderViewID(7), id, "resizing keeps the view")
	assert.Equal(t, image.Point{X: 10, Y: 20}, ctx.Resolution())
}

func TestContext_SetResolutionWithoutView(t *testing.T) {
	ctrl := gomock.NewController(t)
	handle := mocks.NewMockHandle(ctrl)

	ctx := NewContext()
	require.NoError(t, ctx.SetResolution(handle, image.Point{X: 3, Y: 4}))
	assert.Equal(t, image.Point{X: 3, Y: 4}, ctx.Resolution())
}

func TestContext_CreateFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	handle := mocks.NewMockHandle(ctrl)
	handle.EXPECT().CreateRenderView(gomock.Any()).Return(backend.RenderViewID(0), backend.ErrClosed)

	ctx := NewContext()
	err := ctx.Create(handle, backend.RenderViewDesc{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrClosed))
	_, ok := ctx.ID()
	assert.False(t, ok)
}
