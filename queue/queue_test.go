// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import "testing"

func points(n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{X: float64(i), Y: float64(i)}
	}
	return pts
}

func TestQueueCapRejectsOverflow(t *testing.T) {
	q := New(3000)
	_, err := q.EnqueueMany(points(3001), false)
	if err != ErrFull {
		t.Fatalf("EnqueueMany(3001): got %v, want ErrFull", err)
	}
	if size := q.Size(); size != 0 {
		t.Errorf("queue size after rejected overflow = %d, want 0", size)
	}
}

func TestFIFOOrder(t *testing.T) {
	q := New(10)
	q.EnqueueMany(points(3), false)
	for i := 0; i < 3; i++ {
		p, ok := q.TryPop()
		if !ok {
			t.Fatalf("TryPop() at %d: ok=false", i)
		}
		if p.X != float64(i) {
			t.Errorf("TryPop() %d: X=%v, want %v", i, p.X, i)
		}
	}
}

func TestTryPopRequiresExecuting(t *testing.T) {
	q := New(10)
	// Points not yet appended: not executing, TryPop must report false.
	if _, ok := q.TryPop(); ok {
		t.Fatal("TryPop on empty non-executing queue returned ok")
	}
	q.EnqueueMany(points(1), false)
	if !q.Executing() {
		t.Fatal("EnqueueMany with points did not set executing")
	}
}

func TestEndOfJobDrainsOnlyWhenEmpty(t *testing.T) {
	q := New(10)
	q.EnqueueMany(points(2), true)
	q.TryPop()
	q.DrainIfDone()
	if !q.Executing() {
		t.Fatal("DrainIfDone cleared executing while queue non-empty")
	}
	q.TryPop()
	q.DrainIfDone()
	if q.Executing() {
		t.Fatal("DrainIfDone did not clear executing once queue drained with end-of-job set")
	}
}

func TestResumeAcrossBatchesStaysExecuting(t *testing.T) {
	q := New(10)
	q.EnqueueMany(points(1), false) // batch 1, no end_of_job
	q.TryPop()
	q.DrainIfDone()
	if !q.Executing() {
		t.Fatal("queue stopped executing between batches without end_of_job set")
	}
	q.EnqueueMany(points(1), true) // batch 2, end_of_job
	q.TryPop()
	q.DrainIfDone()
	if q.Executing() {
		t.Fatal("queue still executing after final batch drained")
	}
}

func TestResetClearsEverything(t *testing.T) {
	q := New(10)
	q.EnqueueMany(points(5), true)
	q.Reset()
	if size, executing := q.Snapshot(); size != 0 || executing {
		t.Errorf("Snapshot after Reset = (%d,%v), want (0,false)", size, executing)
	}
}
