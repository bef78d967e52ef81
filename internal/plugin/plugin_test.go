package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/danmu-garden-scene/internal/scene"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

type counter struct {
	inits   int
	updates int
}

func (c *counter) OnInit(*ScriptContext) error {
	c.inits++
	return nil
}

func (c *counter) OnUpdate(*ScriptContext) {
	c.updates++
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	rc := NewRegistrationContext("garden", r)
	assert.Equal(t, "garden", rc.Owner())

	require.NoError(t, rc.RegisterScript("rotor", func() Script { return &counter{} }))
	require.NoError(t, rc.RegisterScript("door", func() Script { return &counter{} }))
	assert.Equal(t, []string{"door", "rotor"}, r.Names())
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Has("door"))

	err := NewRegistrationContext("other", r).RegisterScript("door", func() Script { return &counter{} })
	assert.ErrorIs(t, err, merr.ErrPluginDuplicateScript)
	assert.Contains(t, err.Error(), "garden")
	assert.Equal(t, 2, r.Len())

	assert.ErrorIs(t, rc.RegisterScript("", func() Script { return nil }), merr.ErrParameterMissing)
	assert.ErrorIs(t, rc.RegisterScript("nil", nil), merr.ErrParameterInvalid)

	a, err := r.New("door")
	require.NoError(t, err)
	b, err := r.New("door")
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	_, err = r.New("missing")
	assert.ErrorIs(t, err, merr.ErrPluginUnknownScript)
}

func TestBaseAndContext(t *testing.T) {
	var p Plugin = Base{}
	exits := 0
	ctx := NewContext(context.Background(), scene.NewContainer(), nil, nil, func() { exits++ })

	p.OnSceneBeginLoading("a", ctx)
	p.OnSceneLoaded("a", scene.Handle{}, nil, ctx)
	p.OnSceneLoadFailed("a", merr.ErrIoFailed, ctx)
	p.OnUpdate(ctx)

	ctx.RequestExit()
	assert.Equal(t, 1, exits)
	assert.NotNil(t, ctx.Logger())

	(&Context{}).RequestExit()
}
