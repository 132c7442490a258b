package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionsKeysAreSorted(t *testing.T) {
	conditions := Conditions{"name": "a", "age": 3, "id": 1}
	assert.Equal(t, []string{"age", "id", "name"}, conditions.Keys())
	assert.Empty(t, Conditions(nil).Keys())
}

func TestComparatorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		got      Comparator
		operator Operator
	}{
		{"eq", Eq(1), OpEq},
		{"ne", Ne(1), OpNe},
		{"gt", Gt(1), OpGt},
		{"gte", Gte(1), OpGte},
		{"lt", Lt(1), OpLt},
		{"lte", Lte(1), OpLte},
		{"like", Like("a%"), OpLike},
		{"not like", NotLike("a%"), OpNotLike},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.operator, tt.got.Operator)
			assert.Nil(t, tt.got.To)
		})
	}

	between := Between(1, 5)
	assert.Equal(t, OpBetween, between.Operator)
	assert.Equal(t, 1, between.Value)
	assert.Equal(t, 5, between.To)
	assert.Equal(t, OpNotBetween, NotBetween(1, 5).Operator)
}

func TestFindOptions(t *testing.T) {
	opts := NewFindOptions().OrderBy("created_at", "Z").OrderBy("name", "A").WithLimit(10).WithOffset(20)

	require.NoError(t, opts.Validate())
	require.NotNil(t, opts.Limit)
	assert.Equal(t, 10, *opts.Limit)
	assert.Equal(t, 20, opts.Offset)
	assert.True(t, opts.Order[0].Descending())
	assert.False(t, opts.Order[1].Descending())
	assert.False(t, opts.HasAssociations())

	opts.WithExists(ExistsSpec{Table: "pets", Link: ExistsLink{Field: "owner_id", To: "id"}})
	assert.True(t, opts.HasAssociations())

	var nilOpts *FindOptions
	assert.NoError(t, nilOpts.Validate())
	assert.False(t, nilOpts.HasAssociations())
}

func TestFindOptionsValidateRejectsNegativePagination(t *testing.T) {
	assert.Error(t, NewFindOptions().WithOffset(-1).Validate())
	assert.Error(t, NewFindOptions().WithLimit(-1).Validate())
	assert.NoError(t, NewFindOptions().WithLimit(0).Validate())
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	assert.ErrorIs(t, &ConnectionError{Protocol: "postgres", Cause: cause}, cause)
	assert.ErrorIs(t, &QueryError{Protocol: "postgres", Cause: cause}, cause)
	assert.ErrorIs(t, &CoercionError{Field: "_id", Cause: cause}, cause)
	assert.ErrorIs(t, &TaskError{Name: "users", Cause: cause}, cause)

	assert.Equal(t, `unknown protocol "oracle"`, (&UnknownProtocolError{Protocol: "oracle"}).Error())
	assert.Equal(t, "mongodb: merge is not supported", (&UnsupportedOperationError{Protocol: "mongodb", Operation: "merge"}).Error())
	assert.Equal(t, `unknown type "point" found during inference of places.location`,
		(&UnsupportedTypeError{Table: "places", Column: "location", Type: "point"}).Error())
}

func TestTableSpecColumns(t *testing.T) {
	spec := TableSpec{Table: "users", Properties: map[string]Property{
		"name":  {Type: TypeString},
		"id":    {Type: TypeNumber, Key: true, Serial: true},
		"email": {Type: TypeString, Unique: true},
	}}
	assert.Equal(t, []string{"id", "email", "name"}, spec.Columns())
	assert.Equal(t, []string{"id"}, spec.Keys())
}

func TestSerialStopsOnFirstError(t *testing.T) {
	var ran []string
	task := func(name string, err error) Task {
		return Task{Name: name, Run: func(ctx context.Context) error {
			ran = append(ran, name)
			return err
		}}
	}
	boom := errors.New("boom")

	err := Serial(context.Background(), task("a", nil), task("b", boom), task("c", nil))

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "b", taskErr.Name)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestSerialHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Serial(ctx, Task{Name: "a", Run: func(ctx context.Context) error {
		called = true
		return nil
	}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCollect(t *testing.T) {
	one := func(ctx context.Context) (int, error) { return 1, nil }
	two := func(ctx context.Context) (int, error) { return 2, nil }
	fail := func(ctx context.Context) (int, error) { return 0, errors.New("boom") }

	got, err := Collect(context.Background(), one, two)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)

	got, err = Collect(context.Background(), one, fail, two)
	assert.Error(t, err)
	assert.Equal(t, []int{1}, got)
}

func TestEventsEmitAsync(t *testing.T) {
	var events Events
	received := make(chan error, 2)
	events.On(EventError, func(err error) { received <- err })
	events.On(EventError, nil)
	assert.Equal(t, 1, events.Listeners(EventError))

	boom := errors.New("boom")
	events.Emit(EventError, boom)

	select {
	case err := <-received:
		assert.Equal(t, boom, err)
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
	assert.Equal(t, 0, events.Listeners("close"))
}
