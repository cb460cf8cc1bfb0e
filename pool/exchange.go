package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
)

// Exchange sends req on a pooled connection and reads its response.
//
// The connection is released only after a well-formed response carrying
// req's id. Transport failures, malformed responses and id mismatches
// terminate it. When ctx ends mid-exchange the connection is terminated too,
// since a late response would otherwise be read by the next caller.
func (p *Pool) Exchange(ctx context.Context, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("pool: encode request: %w", err)
	}

	pc, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if err := pc.Send(ctx, payload); err != nil {
		pc.Terminate()
		return nil, fmt.Errorf("pool: send to %s: %w", p.url, err)
	}

	raw, err := pc.Recv(ctx)
	if err != nil {
		pc.Terminate()
		return nil, fmt.Errorf("pool: receive from %s: %w", p.url, err)
	}

	resp, err := jsonrpc.DecodeResponse(raw)
	if err != nil {
		pc.Terminate()
		return nil, err
	}

	if !sameID(req.ID, resp.ID) {
		pc.Terminate()
		p.logger.Warn().
			RawJSON("sent_id", req.IDOrNull()).
			RawJSON("received_id", resp.ID).
			Msg("response id mismatch, connection terminated")
		return nil, &DesyncError{URL: p.url, Sent: string(req.IDOrNull()), Got: string(resp.ID)}
	}

	pc.Release()
	return resp, nil
}

func sameID(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
