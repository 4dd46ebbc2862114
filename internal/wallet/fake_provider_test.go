package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

type call struct {
	method string
	args   []interface{}
}

// fakeProvider answers wallet requests from a per-method queue of responses.
type fakeProvider struct {
	mu        sync.Mutex
	calls     []call
	responses map[string][]response
}

type response struct {
	result interface{}
	err    error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{responses: map[string][]response{}}
}

func (f *fakeProvider) on(method string, result interface{}, err error) *fakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method] = append(f.responses[method], response{result: result, err: err})
	return f
}

func (f *fakeProvider) CallContext(_ context.Context, result interface{}, method string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, args: args})

	queue := f.responses[method]
	if len(queue) == 0 {
		return fmt.Errorf("unexpected call %s", method)
	}
	resp := queue[0]
	// the last response sticks so repeated polls keep answering
	if len(queue) > 1 {
		f.responses[method] = queue[1:]
	}
	if resp.err != nil {
		return resp.err
	}
	if result == nil || resp.result == nil {
		return nil
	}
	raw, err := json.Marshal(resp.result)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

func (f *fakeProvider) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.method)
	}
	return out
}

func (f *fakeProvider) argsOf(method string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.method == method {
			return c.args
		}
	}
	return nil
}
