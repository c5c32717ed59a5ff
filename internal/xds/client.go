// Copyright Istio Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package xds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	discovery "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"agentgateway.dev/agentgateway/internal/metrics"
	"agentgateway.dev/agentgateway/internal/strng"

	"istio.io/pkg/log"
)

var scope = log.RegisterScope("xds", "delta xDS client", 0)

const (
	initialBackoff = 10 * time.Millisecond
	maxBackoff     = 15 * time.Second
)

// Client is a generic delta (incremental) ADS client. It accepts
// typed Handlers for the resource types it is configured to watch;
// handlers are responsible for their own state, the client only
// manages the wire protocol, ACK/NACK, and reconnection.
//
// This is not a fully general purpose xDS client: it has no support
// for resources that depend on other resources being fetched first.
type Client struct {
	config *Config
	state  *clientState

	connectionID  int
	typesToExpect map[string]struct{}
	backoff       *backoff.ExponentialBackOff

	// ready is closed once every initial, non-on-demand type has been
	// acked at least once.
	ready     chan struct{}
	readyOnce bool
}

func newClient(c *Config) *Client {
	typesToExpect := map[string]struct{}{}
	for _, req := range c.initialReqs {
		if len(req.ResourceNamesSubscribe) == 0 { // not on-demand
			typesToExpect[req.TypeUrl] = struct{}{}
		}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	// NewExponentialBackOff already reset to the library's default
	// interval; reset again so the first wait uses initialBackoff.
	b.Reset()
	return &Client{
		config:        c,
		state:         newClientState(),
		typesToExpect: typesToExpect,
		backoff:       b,
		ready:         make(chan struct{}),
	}
}

// Demander returns a Demander for requesting resources on demand, or
// the zero Demander if the client was not built with WithOnDemand(true).
func (c *Client) Demander() Demander {
	if !c.config.onDemand {
		return Demander{}
	}
	return Demander{demand: c.state.demand}
}

// Ready is closed once every initial (non on-demand) resource type has
// been acked at least once.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

func (c *Client) markTypeSeen(typeURL string) {
	if len(c.typesToExpect) == 0 {
		return
	}
	delete(c.typesToExpect, typeURL)
	if len(c.typesToExpect) == 0 && !c.readyOnce {
		c.readyOnce = true
		close(c.ready)
	}
}

// Run drives the connect/stream/reconnect loop forever, or until ctx
// is cancelled.
func (c *Client) Run(ctx context.Context) error {
	for {
		c.connectionID++
		id := c.connectionID
		err := c.runInternal(ctx)
		c.classifyAndWait(ctx, id, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// classifyAndWait mirrors the teacher's reconnect backoff table. Dial
// failures and non-benign gRPC errors escalate c.backoff and sleep for
// the escalated duration. A benign disconnect (Cancelled,
// DeadlineExceeded, or Unavailable with a "going away" message) resets
// the backoff and reconnects after only the floor interval. A clean
// stream close or any other error resets the backoff and reconnects
// immediately, with no sleep at all.
func (c *Client) classifyAndWait(ctx context.Context, connID int, err error) {
	switch {
	case err == nil:
		scope.Warnf("xds[%d] client complete", connID)
		metrics.RecordTermination(metrics.Complete)
		c.backoff.Reset()
		return
	case isDialError(err):
		wait := c.backoff.NextBackOff()
		scope.Warnf("xds[%d] connection error: %v, retrying in %v", connID, err, wait)
		metrics.RecordTermination(metrics.ConnectionError)
		sleep(ctx, wait)
		return
	}

	st, isStatus := status.FromError(err)
	switch {
	case isStatus && isBenignDisconnect(st):
		c.backoff.Reset()
		wait := c.backoff.InitialInterval
		scope.Debugf("xds[%d] client terminated: %v, retrying in %v", connID, err, wait)
		metrics.RecordTermination(metrics.Reconnect)
		sleep(ctx, wait)
	case isStatus:
		wait := c.backoff.NextBackOff()
		scope.Warnf("xds[%d] client error: %v, retrying in %v", connID, err, wait)
		metrics.RecordTermination(metrics.Error)
		sleep(ctx, wait)
	default:
		scope.Warnf("xds[%d] client error: %v, retrying", connID, err)
		metrics.RecordTermination(metrics.Error)
		c.backoff.Reset()
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// isDialError reports whether err came from failing to establish the
// gRPC connection at all, as opposed to an error on an established
// stream.
func isDialError(err error) bool {
	var dialErr *dialError
	return errors.As(err, &dialErr)
}

func isBenignDisconnect(st *status.Status) bool {
	switch st.Code() {
	case codes.Canceled, codes.DeadlineExceeded:
		return true
	case codes.Unavailable:
		msg := st.Message()
		return strings.Contains(msg, "transport is closing") || strings.Contains(msg, "received prior goaway")
	default:
		return false
	}
}

// dialError wraps a failure to establish the ADS stream, distinguishing
// it from a mid-stream error for backoff classification purposes.
type dialError struct{ err error }

func (d *dialError) Error() string { return fmt.Sprintf("connecting to xds server: %v", d.err) }
func (d *dialError) Unwrap() error { return d.err }

func (c *Client) runInternal(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := grpc.DialContext(ctx, c.config.address, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return &dialError{err: err}
	}
	defer conn.Close()

	client := discovery.NewAggregatedDiscoveryServiceClient(conn)
	stream, err := client.DeltaAggregatedResources(ctx, grpc.MaxCallRecvMsgSize(200*1024*1024))
	if err != nil {
		return &dialError{err: err}
	}

	requests := make(chan *discovery.DeltaDiscoveryRequest, 100)
	for _, req := range c.initialRequestsWithVersions() {
		requests <- req
	}

	sendErrs := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req, ok := <-requests:
				if !ok {
					return
				}
				scope.Debugf("sending request type=%s", req.TypeUrl)
				if err := stream.Send(req); err != nil {
					select {
					case sendErrs <- err:
					default:
					}
					return
				}
			}
		}
	}()

	scope.Info("stream established")
	recvCh := make(chan recvResult, 1)
	go func() {
		for {
			msg, err := stream.Recv()
			recvCh <- recvResult{msg: msg, err: err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sendErrs:
			return err
		case demand := <-c.state.demand:
			if err := c.handleDemandEvent(demand, requests); err != nil {
				return err
			}
		case r := <-recvCh:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					return nil
				}
				return r.err
			}
			if err := c.handleStreamEvent(r.msg, requests); err != nil {
				return err
			}
		}
	}
}

type recvResult struct {
	msg *discovery.DeltaDiscoveryResponse
	err error
}

// initialRequestsWithVersions stamps each configured initial request
// with initial_resource_versions drawn from what is already known for
// that type, so a reconnect doesn't re-fetch resources it already has.
func (c *Client) initialRequestsWithVersions() []*discovery.DeltaDiscoveryRequest {
	out := make([]*discovery.DeltaDiscoveryRequest, 0, len(c.config.initialReqs))
	for _, req := range c.config.initialReqs {
		cp := *req
		if known, ok := c.state.knownResources[strng.New(req.TypeUrl)]; ok {
			versions := make(map[string]string, len(known))
			for name := range known {
				versions[name.String()] = ""
			}
			cp.InitialResourceVersions = versions
		}
		out = append(out, &cp)
	}
	return out
}

func (c *Client) handleStreamEvent(res *discovery.DeltaDiscoveryResponse, send chan<- *discovery.DeltaDiscoveryRequest) error {
	typeURL := res.GetTypeUrl()
	nonce := res.GetNonce()
	metrics.RecordDiscoveryResponse(typeURL)
	scope.Infof("received response type=%s size=%d removes=%d", typeURL, len(res.GetResources()), len(res.GetRemovedResources()))

	h, known := c.config.handlers[strng.New(typeURL)]
	var rejects []RejectedConfig
	if !known {
		scope.Errorf("unknown resource type %s", typeURL)
	} else {
		rejects = h.handle(c.state, res)
	}

	req := &discovery.DeltaDiscoveryRequest{
		TypeUrl:       typeURL,
		ResponseNonce: nonce,
	}
	if len(rejects) > 0 {
		msgs := make([]string, len(rejects))
		for i, r := range rejects {
			msgs[i] = r.Error()
		}
		errMsg := strings.Join(msgs, "; ")
		scope.Errorf("nacking type=%s nonce=%s error=%s", typeURL, nonce, errMsg)
		req.ErrorDetail = &rpcstatus.Status{Message: errMsg}
	} else {
		scope.Debugf("acking type=%s nonce=%s", typeURL, nonce)
		c.markTypeSeen(typeURL)
	}

	send <- req
	return nil
}

func (c *Client) handleDemandEvent(demand demandRequest, send chan<- *discovery.DeltaDiscoveryRequest) error {
	scope.Infof("received on-demand request %s", demand.key)
	c.state.pending[demand.key] = demand.done
	c.state.addKnown(demand.key)
	send <- &discovery.DeltaDiscoveryRequest{
		TypeUrl:                demand.key.TypeURL.String(),
		ResourceNamesSubscribe: []string{demand.key.Name.String()},
	}
	return nil
}
