package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// pipelineLifecycleWorld carries the shared state between godog step
// functions for one scenario: the Orchestrator under test plus whatever
// the last operation produced, mirroring the teacher's BaseTestSuite
// shape without needing a real Kafka/ksqlDB/ClickHouse cluster — every
// collaborator here is the same in-package fake orchestrator_test.go
// already uses for its table-driven tests.
type pipelineLifecycleWorld struct {
	store *fakeStore
	orch  *Orchestrator
	owner string
	id    string
}

func (w *pipelineLifecycleWorld) aPendingPipeline(id, owner, table string) error {
	deps, store := baseDeps()
	w.store = store
	w.orch = New(deps)
	w.owner = owner
	w.id = id

	p := pendingPipeline()
	p.ID = id
	p.Owner = owner
	store.pipelines[id] = p
	return nil
}

func (w *pipelineLifecycleWorld) iStartPipelineAs(id, owner string) error {
	_, err := w.orch.Start(context.Background(), owner, id)
	return err
}

func (w *pipelineLifecycleWorld) iDeletePipelineAs(id, owner string) error {
	_, err := w.orch.Delete(context.Background(), owner, id, DeleteOptions{})
	return err
}

func (w *pipelineLifecycleWorld) pipelineIs(id, status string) error {
	p, ok := w.store.pipelines[id]
	if !ok {
		return fmt.Errorf("no such pipeline %s", id)
	}
	if string(p.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, p.Status)
	}
	return nil
}

func (w *pipelineLifecycleWorld) pipelineHasConnectors(id string) error {
	p := w.store.pipelines[id]
	if p.SourceConnectorName == "" || p.SinkConnectorName == "" {
		return fmt.Errorf("expected both connector names to be set, got source=%q sink=%q",
			p.SourceConnectorName, p.SinkConnectorName)
	}
	return nil
}

func (w *pipelineLifecycleWorld) pipelineHasNoActiveTrackedResources(id string) error {
	resources := w.orch.tracker.(*fakeResources).resources
	for _, r := range resources {
		if r.PipelineID == id && r.Status == models.ResourceStatusActive {
			return fmt.Errorf("resource %s still active", r.ID)
		}
	}
	return nil
}

func (w *pipelineLifecycleWorld) registerSteps(s *godog.ScenarioContext) {
	s.Given(`^a pending pipeline "([^"]*)" owned by "([^"]*)" over table "([^"]*)"$`, w.aPendingPipeline)
	s.When(`^I start pipeline "([^"]*)" as "([^"]*)"$`, w.iStartPipelineAs)
	s.When(`^I delete pipeline "([^"]*)" as "([^"]*)"$`, w.iDeletePipelineAs)
	s.Then(`^pipeline "([^"]*)" is "([^"]*)"$`, w.pipelineIs)
	s.Then(`^pipeline "([^"]*)" has a source connector and a sink connector$`, w.pipelineHasConnectors)
	s.Then(`^pipeline "([^"]*)" has no active tracked resources$`, w.pipelineHasNoActiveTrackedResources)
}

// TestPipelineLifecycleFeature runs the create->start->delete happy-path
// scenario (spec.md §8 scenario 1) as a godog BDD suite against the
// in-package fakes, the same pattern the teacher's tests/main_test.go
// uses to drive godog.TestSuite with testing.T.
func TestPipelineLifecycleFeature(t *testing.T) {
	var world pipelineLifecycleWorld

	suite := godog.TestSuite{
		ScenarioInitializer: func(s *godog.ScenarioContext) {
			world.registerSteps(s)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/pipeline_lifecycle.feature"},
			TestingT: t,
		},
	}

	require.Equal(t, 0, suite.Run(), "godog scenario(s) failed")
}
