package e2e_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/agentcore/runtime/internal/core"
	"github.com/agentcore/runtime/internal/modeladapter"
	"github.com/agentcore/runtime/internal/permission"
)

// sessionResp is the subset of core.Session fields these specs assert on.
type sessionResp struct {
	ID string `json:"id"`
}

type partResp struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Tool  string          `json:"tool,omitempty"`
	State json.RawMessage `json:"state,omitempty"`
}

type messageResp struct {
	Info  json.RawMessage `json:"info"`
	Parts []partResp      `json:"parts"`
}

func (h *harness) createSession() string {
	resp := h.post("/session", map[string]any{"title": "e2e"})
	Expect(resp.StatusCode).To(Equal(http.StatusOK))
	return decodeJSON[sessionResp](resp).ID
}

func (h *harness) promptAsync(sessionID string, text string, agentName string) {
	resp := h.post(fmt.Sprintf("/session/%s/prompt_async", sessionID), map[string]any{
		"parts": []map[string]any{{"type": "text", "text": text}},
		"agent": agentName,
	})
	Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
	resp.Body.Close()
}

func (h *harness) messages(sessionID string) []messageResp {
	resp := h.get(fmt.Sprintf("/session/%s/message", sessionID))
	Expect(resp.StatusCode).To(Equal(http.StatusOK))
	return decodeJSON[[]messageResp](resp)
}

var _ = Describe("Turn scenarios (spec §8)", func() {
	var h *harness

	AfterEach(func() {
		if h != nil {
			h.Close()
		}
	})

	// S1 — Echo turn.
	It("persists a user message and a stopped assistant reply", func() {
		h = newHarness(nil)
		sid := h.createSession()
		h.promptAsync(sid, "hi", "")

		Eventually(func() int { return len(h.messages(sid)) }, 2*time.Second, 10*time.Millisecond).Should(Equal(2))

		msgs := h.messages(sid)
		var user, assistant messageResp
		for _, m := range msgs {
			var env struct {
				Role string `json:"role"`
			}
			Expect(json.Unmarshal(m.Info, &env)).To(Succeed())
			if env.Role == "user" {
				user = m
			} else {
				assistant = m
			}
		}
		Expect(user.Parts).To(HaveLen(1))
		Expect(user.Parts[0].Text).To(Equal("hi"))

		var af struct {
			Finish string `json:"finish"`
		}
		Expect(json.Unmarshal(assistant.Info, &af)).To(Succeed())
		Eventually(func() string {
			msgs := h.messages(sid)
			for _, m := range msgs {
				var f struct {
					Finish string `json:"finish"`
				}
				json.Unmarshal(m.Info, &f)
				if f.Finish != "" {
					return f.Finish
				}
			}
			return ""
		}, 2*time.Second, 10*time.Millisecond).Should(Equal("stop"))
	})

	// S2 — Tool call.
	It("completes a tool call then finishes the turn", func() {
		script := modeladapter.ToolCallScript("echo", `{"text":"hi"}`, "done")
		h = newHarness(script)
		sid := h.createSession()
		h.promptAsync(sid, "run ls", "")

		Eventually(func() bool {
			for _, m := range h.messages(sid) {
				for _, p := range m.Parts {
					if p.Type == "tool" {
						var st struct {
							Status string `json:"status"`
						}
						json.Unmarshal(p.State, &st)
						if st.Status == "completed" {
							return true
						}
					}
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

		Eventually(func() bool {
			for _, m := range h.messages(sid) {
				for _, p := range m.Parts {
					if p.Type == "text" && p.Text == "done" {
						return true
					}
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
	})

	// S3 — Permission ask, then allowed once.
	It("suspends on ask and completes after a once reply", func() {
		script := modeladapter.ToolCallScript("stub", `{"permission":"fs_write","pattern":"*.env"}`, "done")
		h = newHarness(script)
		h.registerTestAgent("s3", 0, nil)
		sid := h.createSession()
		h.promptAsync(sid, "touch .env", "s3")

		Eventually(func() int { return len(h.perms.List()) }, 2*time.Second, 10*time.Millisecond).Should(Equal(1))
		reqs := h.perms.List()
		Expect(reqs[0].Permission).To(Equal("fs_write"))

		Expect(h.perms.Reply(reqs[0].ID, permission.ReplyOnce, "")).To(Succeed())

		Eventually(func() bool {
			for _, m := range h.messages(sid) {
				for _, p := range m.Parts {
					if p.Type == "tool" {
						var st struct {
							Status string `json:"status"`
						}
						json.Unmarshal(p.State, &st)
						if st.Status == "completed" {
							return true
						}
					}
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())
	})

	// S4 — Permission deny.
	It("fails the tool part immediately on a deny rule, with no pending request", func() {
		script := modeladapter.ToolCallScript("stub", `{"permission":"bash","pattern":"ls"}`, "done")
		h = newHarness(script)
		h.registerTestAgent("s4", 0, core.RuleSet{
			{Permission: "bash", Pattern: "*", Action: core.ActionDeny},
		})
		sid := h.createSession()
		h.promptAsync(sid, "run ls", "s4")

		Eventually(func() bool {
			for _, m := range h.messages(sid) {
				for _, p := range m.Parts {
					if p.Type == "tool" {
						var st struct {
							Status string `json:"status"`
							Error  string `json:"error"`
						}
						json.Unmarshal(p.State, &st)
						if st.Status == "error" {
							return true
						}
					}
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond).Should(BeTrue())

		Expect(h.perms.List()).To(BeEmpty())
	})

	// S5 — Max steps. The script keeps calling a tool until it sees the
	// synthetic max-steps notice in the request, then stops — the
	// well-behaved-model side of spec §4.7 step j.
	It("stops after the agent's step cap, honoring the synthetic notice", func() {
		script := func(req modeladapter.Request, step int) []modeladapter.Event {
			for _, item := range req.Messages {
				for _, p := range item.Parts {
					if tp, ok := p.(*core.TextPart); ok && tp.Synthetic {
						return []modeladapter.Event{
							modeladapter.TextStart{},
							modeladapter.TextDelta{Delta: "final"},
							modeladapter.TextEnd{Text: "final"},
							modeladapter.StepFinish{FinishReason: "stop"},
						}
					}
				}
			}
			return []modeladapter.Event{
				modeladapter.ToolCallStart{ToolCallID: "call_1", ToolName: "echo"},
				modeladapter.ToolCall{ToolCallID: "call_1", ToolName: "echo", Args: `{"text":"x"}`},
				modeladapter.StepFinish{FinishReason: "tool-calls"},
			}
		}
		h = newHarness(script)
		h.registerTestAgent("s5", 2, nil)
		sid := h.createSession()
		h.promptAsync(sid, "loop forever", "s5")

		Eventually(func() string {
			for _, m := range h.messages(sid) {
				var f struct {
					Finish string `json:"finish"`
				}
				json.Unmarshal(m.Info, &f)
				if f.Finish == "stop" {
					return f.Finish
				}
			}
			return ""
		}, 2*time.Second, 10*time.Millisecond).Should(Equal("stop"))

		n := 0
		for _, m := range h.messages(sid) {
			var env struct {
				Role string `json:"role"`
			}
			json.Unmarshal(m.Info, &env)
			if env.Role == "assistant" {
				n++
			}
		}
		Expect(n).To(Equal(2))
	})

	// S6 — Abort.
	It("finalizes an aborted turn with finish=abort and no leaked pending permissions", func() {
		started := make(chan struct{})
		blocked := make(chan struct{})
		script := func(req modeladapter.Request, step int) []modeladapter.Event {
			close(started)
			<-blocked
			return nil
		}
		h = newHarness(script)
		sid := h.createSession()
		h.promptAsync(sid, "hang", "")

		select {
		case <-started:
		case <-time.After(2 * time.Second):
			Fail("turn never started")
		}

		resp := h.post(fmt.Sprintf("/session/%s/abort", sid), nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()
		close(blocked)

		Eventually(func() string {
			for _, m := range h.messages(sid) {
				var f struct {
					Finish string `json:"finish"`
				}
				json.Unmarshal(m.Info, &f)
				if f.Finish != "" {
					return f.Finish
				}
			}
			return ""
		}, 2*time.Second, 10*time.Millisecond).Should(Equal("abort"))

		Expect(h.perms.List()).To(BeEmpty())
	})
})
