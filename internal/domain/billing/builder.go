package billing

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides whether a transition may be taken
type GuardFunc func(ctx context.Context) bool

// Builder assembles the transition table of a state machine
type Builder interface {
	// Configure returns the configuration for transitions out of state
	Configure(state State) StateConfiguration

	// Build creates a machine positioned at initial
	Build(initial State) StateMachine
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows a trigger to move to the target state
	Permit(trigger Trigger, to State) StateConfiguration

	// PermitIf allows a trigger to move to the target state when guard passes
	PermitIf(trigger Trigger, to State, guard GuardFunc) StateConfiguration
}

type transition struct {
	to    State
	guard GuardFunc
}

type stateConfig struct {
	transitions map[Trigger][]transition
}

type builder struct {
	configs map[State]*stateConfig
}

type stateMachine struct {
	current State
	configs map[State]*stateConfig
}

// NewBuilder creates an empty builder
func NewBuilder() Builder {
	return &builder{configs: make(map[State]*stateConfig)}
}

func (b *builder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	cfg, ok := b.configs[state]
	if !ok {
		cfg = &stateConfig{transitions: make(map[Trigger][]transition)}
		b.configs[state] = cfg
	}
	return cfg
}

// Build copies the table so later Configure calls do not leak into built machines
func (b *builder) Build(initial State) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}

	configs := make(map[State]*stateConfig, len(b.configs))
	for state, cfg := range b.configs {
		transitions := make(map[Trigger][]transition, len(cfg.transitions))
		for trigger, ts := range cfg.transitions {
			transitions[trigger] = append([]transition{}, ts...)
		}
		configs[state] = &stateConfig{transitions: transitions}
	}

	return &stateMachine{current: initial, configs: configs}
}

func (c *stateConfig) Permit(trigger Trigger, to State) StateConfiguration {
	return c.PermitIf(trigger, to, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, to State, guard GuardFunc) StateConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	c.transitions[trigger] = append(c.transitions[trigger], transition{to: to, guard: guard})
	return c
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(ctx context.Context, trigger Trigger) bool {
	_, err := m.resolve(ctx, trigger)
	return err == nil
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	to, err := m.resolve(ctx, trigger)
	if err != nil {
		return err
	}
	m.current = to
	return nil
}

// resolve picks the first transition whose guard passes
func (m *stateMachine) resolve(ctx context.Context, trigger Trigger) (State, error) {
	cfg, ok := m.configs[m.current]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s (no configuration)", ErrInvalidTransition, trigger, m.current)
	}

	ts := cfg.transitions[trigger]
	if len(ts) == 0 {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range ts {
		if t.guard == nil || t.guard(ctx) {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	cfg, ok := m.configs[m.current]
	if !ok {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(cfg.transitions))
	for trigger := range cfg.transitions {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
