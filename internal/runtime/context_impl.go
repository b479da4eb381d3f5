package runtime

import (
	"context"

	"firestige.xyz/visionflow/internal/logging"
	"firestige.xyz/visionflow/pkg/component"
)

// invocationContext is the component.Context handed to Component.Run for
// exactly the duration of one invocation.
type invocationContext struct {
	run *Run
	st  *invocationState
}

var _ component.Context = (*invocationContext)(nil)

func (c *invocationContext) GetPrimary() (component.Value, bool) {
	return c.st.getPrimary()
}

func (c *invocationContext) GetNamed(name string) (component.Value, bool) {
	return c.st.getNamed(name)
}

func (c *invocationContext) GetNamedAll(name string) []component.Value {
	return c.st.getNamedAll(name)
}

func (c *invocationContext) Emit(channel string, value component.Value) error {
	return c.st.emit(channel, value)
}

func (c *invocationContext) RunID() string { return c.run.ID() }

func (c *invocationContext) SourceName() string { return c.run.SourceName() }

func (c *invocationContext) PipelineID() string { return c.run.PipelineID() }

func (c *invocationContext) LogSpan() component.LogSpan {
	return logging.New(c.run.ID(), c.st.plan.Name, c.st.prefix.Key())
}

func (c *invocationContext) Context() context.Context { return c.run.ctx }
