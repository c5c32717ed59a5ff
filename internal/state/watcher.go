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

package state

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// watchFile watches path non-recursively and calls reload whenever a
// Write or Create event fires, debounced by watchDebounce so a burst of
// events (many editors write-then-rename) triggers one reload instead
// of several. fsnotify has no built-in debouncer, unlike the Rust
// notify_debouncer_full crate this mirrors, so the debounce timer is
// hand-rolled here.
func watchFile(ctx context.Context, path string, reload func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		pending := make(chan struct{}, 1)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer == nil {
					timer = time.AfterFunc(watchDebounce, func() {
						select {
						case pending <- struct{}{}:
						default:
						}
					})
				} else {
					timer.Reset(watchDebounce)
				}
			case <-pending:
				scope.Info("config file changed, reloading")
				reload()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				scope.Errorf("file watcher error: %v", err)
			}
		}
	}()
	return nil
}
