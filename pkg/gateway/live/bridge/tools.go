package bridge

import (
	"fmt"
	"sync"

	"github.com/apsara-labs/apsara-live/pkg/gateway/live/protocol"
	"github.com/apsara-labs/apsara-live/pkg/gateway/upstream"
)

// onToolCall runs one intercepted batch. The client hears about the
// batch before any handler runs; calls execute independently; the
// model gets exactly one batched response with one entry per call.
func (b *Bridge) onToolCall(calls []upstream.ToolCallRequest) {
	infos := make([]protocol.ToolCallInfo, len(calls))
	for i, call := range calls {
		infos[i] = protocol.ToolCallInfo{Name: call.Name, Args: call.Args}
	}
	b.writeEvent(protocol.ToolCallStarted(infos))

	b.mu.Lock()
	for _, call := range calls {
		b.pending[call.ID] = struct{}{}
	}
	b.mu.Unlock()

	results := make([]upstream.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call upstream.ToolCallRequest) {
			defer wg.Done()
			results[i] = b.runTool(call)
		}(i, call)
	}
	wg.Wait()

	b.mu.Lock()
	for _, call := range calls {
		delete(b.pending, call.ID)
	}
	b.mu.Unlock()

	// A pairing torn down mid-batch abandons delivery; the model side
	// is gone and the client already got its terminal event.
	if b.closed() {
		b.log.Info("abandon tool results after teardown", "calls", len(calls))
		return
	}

	session := b.currentSession()
	if session == nil {
		return
	}
	session.SendToolResults(results)
}

// runTool executes one call and emits its client-facing events. A
// panicking handler is contained to its own entry in the batch.
func (b *Bridge) runTool(call upstream.ToolCallRequest) (result upstream.ToolResult) {
	result = upstream.ToolResult{ID: call.ID, Name: call.Name}

	defer func() {
		if r := recover(); r != nil {
			b.log.Error("tool handler panicked", "tool", call.Name, "panic", fmt.Sprint(r))
			result.Response = nil
			result.Error = "tool execution failed"
			b.writeEvent(protocol.ToolCallError(call.Name, result.Error))
		}
	}()

	outcome, err := b.tools.Execute(b.ctx, b.user, call.Name, call.Args)
	if err != nil {
		b.log.Warn("tool call failed", "tool", call.Name, "error", err)
		result.Error = err.Error()
		b.writeEvent(protocol.ToolCallError(call.Name, result.Error))
		return result
	}

	result.Response = outcome.Response
	if sc := outcome.SideChannel; sc != nil {
		b.writeEvent(protocol.SideChannel(sc.Event, sc.Payload))
	}
	b.writeEvent(protocol.ToolCallResult(call.Name, outcome.Response))
	return result
}
