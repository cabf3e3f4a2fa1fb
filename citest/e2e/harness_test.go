package e2e_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/httpapi"
	"github.com/agentcore/runtime/internal/modeladapter"
	"github.com/agentcore/runtime/internal/permission"
	"github.com/agentcore/runtime/internal/question"
	"github.com/agentcore/runtime/internal/storage"
	"github.com/agentcore/runtime/internal/tool"
	"github.com/agentcore/runtime/internal/turn"
)

func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "E2E Suite")
}

// harness wires a full in-process runtime — storage, registries, turn
// engine, httpapi.Server — behind an httptest server, letting specs drive
// the system the way a real client would (spec §8 scenarios S1-S6).
type harness struct {
	t       *testing.T
	srv     *httptest.Server
	store   *storage.Storage
	agents  *agent.Registry
	models  *modeladapter.Registry
	perms   *permission.Checker
	bus     *bus.Bus
}

// newHarness builds a harness whose default model is a stub provider
// driven by script (nil uses the default echo script).
func newHarness(script func(req modeladapter.Request, step int) []modeladapter.Event) *harness {
	store := storage.New(GinkgoT().TempDir())
	tools := tool.DefaultRegistry(GinkgoT().TempDir(), store)
	agents := agent.NewRegistry()
	b := bus.New()
	perms := permission.NewChecker(b)
	questions := question.NewBroker(b)

	models := modeladapter.NewRegistry()
	provider := modeladapter.NewStubProvider(script)
	model := modeladapter.Model{ProviderID: "stub", ModelID: "default"}
	models.Register(provider, []modeladapter.Model{model})
	models.SetDefault(model)

	engine := turn.New(models, tools, agents, store, perms, b)

	cfg := httpapi.DefaultConfig()
	cfg.Port = 0
	server := httpapi.New(cfg, store, engine, agents, tools, models, perms, questions, b)

	srv := httptest.NewServer(server.Router())

	return &harness{srv: srv, store: store, agents: agents, models: models, perms: perms, bus: b}
}

func (h *harness) Close() { h.srv.Close() }

func (h *harness) post(path string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	resp, err := http.Post(h.srv.URL+path, "application/json", &buf)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func (h *harness) get(path string) *http.Response {
	resp, err := http.Get(h.srv.URL + path)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decodeJSON[T any](resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return out
}

// registerTestAgent installs a primary agent under name with the given
// ruleset and step cap, for scenarios that need non-default permission or
// step behavior (S3-S5).
func (h *harness) registerTestAgent(name string, steps int, rules core.RuleSet) {
	h.agents.Register(&agent.Agent{
		Name:       name,
		Mode:       agent.ModePrimary,
		Permission: rules,
		Tools:      map[string]bool{"*": true},
		Steps:      steps,
	})
}
