package component

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goerrors "github.com/kbukum/justconveyor/errors"
)

// mockComponent implements Component for testing.
type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	order    *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.order != nil {
		*m.order = append(*m.order, "start:"+m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.order != nil {
		*m.order = append(*m.order, "stop:"+m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health {
	return m.health
}

type describedComponent struct {
	mockComponent
}

func (d *describedComponent) Describe() Description {
	return Description{Type: "conveyor", Details: "pipelines=1"}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&mockComponent{name: "conveyor"}))

	err := r.Register(&mockComponent{name: "conveyor"})
	assert.True(t, goerrors.HasCode(err, goerrors.ErrCodeDuplicateRegistration), "got %v", err)
}

func TestGet(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&mockComponent{name: "admin"}))

	got := r.Get("admin")
	require.NotNil(t, got)
	assert.Equal(t, "admin", got.Name())
	assert.Nil(t, r.Get("missing"))
}

func TestStartStopOrder(t *testing.T) {
	r := NewRegistry(nil)
	order := []string{}

	require.NoError(t, r.Register(&mockComponent{name: "telemetry", order: &order}))
	require.NoError(t, r.Register(&describedComponent{mockComponent{name: "conveyor", order: &order}}))
	require.NoError(t, r.Register(&mockComponent{name: "admin", order: &order}))

	require.NoError(t, r.StartAll(context.Background()))
	require.NoError(t, r.StopAll(context.Background()))

	assert.Equal(t, []string{
		"start:telemetry", "start:conveyor", "start:admin",
		"stop:admin", "stop:conveyor", "stop:telemetry",
	}, order)
}

func TestStartAllErrorStopsOnlyStarted(t *testing.T) {
	r := NewRegistry(nil)
	order := []string{}

	require.NoError(t, r.Register(&mockComponent{name: "telemetry", order: &order}))
	require.NoError(t, r.Register(&mockComponent{name: "conveyor", order: &order, startErr: fmt.Errorf("no supplier")}))
	require.NoError(t, r.Register(&mockComponent{name: "admin", order: &order}))

	assert.Error(t, r.StartAll(context.Background()))
	_ = r.StopAll(context.Background())

	assert.Equal(t, []string{"start:telemetry", "start:conveyor", "stop:telemetry"}, order)
}

func TestStopAllJoinsErrors(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&mockComponent{name: "a", stopErr: fmt.Errorf("a failed")}))
	require.NoError(t, r.Register(&mockComponent{name: "b", stopErr: fmt.Errorf("b failed")}))
	require.NoError(t, r.StartAll(context.Background()))

	err := r.StopAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, "failed to stop b: b failed\nfailed to stop a: a failed", err.Error())
}

func TestHealthAll(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&mockComponent{name: "conveyor", health: Health{Name: "conveyor", Status: StatusHealthy}}))
	require.NoError(t, r.Register(&mockComponent{name: "admin", health: Health{Name: "admin", Status: StatusDegraded}}))

	health := r.HealthAll(context.Background())
	require.Len(t, health, 2)
	assert.Equal(t, StatusDegraded, health[1].Status)
}

func TestDescriptions(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&mockComponent{name: "admin"}))
	require.NoError(t, r.Register(&describedComponent{mockComponent{name: "conveyor"}}))

	assert.Equal(t, []Description{{Type: "conveyor", Details: "pipelines=1"}}, r.Descriptions())
}
