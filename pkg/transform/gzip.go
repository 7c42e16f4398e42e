// SPDX-License-Identifier: Apache-2.0
/*
 * snug: a content-addressable archive engine for file-system trees
 * Copyright (C) 2026 snug authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transform

import (
	"bytes"
	"fmt"
	"runtime"

	gzip "github.com/klauspost/pgzip"
)

// Gzip is a concurrent gzip chunk transformer, backed by klauspost/pgzip.
var Gzip Algorithm = gzipAlgorithm{}

type gzipAlgorithm struct{}

func (gzipAlgorithm) Name() string { return "gzip" }

// gzipBlockSize matches pgzip's own default block size; changing it changes
// the compressed bytes (not just speed), so chunk identity for a given
// transform depends on it staying fixed.
const gzipBlockSize = 1 << 20

func (gzipAlgorithm) Apply(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	if err := gzw.SetConcurrency(gzipBlockSize, 2*runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("gzip transform: set concurrency: %w", err)
	}
	if _, err := gzw.Write(plain); err != nil {
		return nil, fmt.Errorf("gzip transform: write: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("gzip transform: close: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipAlgorithm) Reverse(transformed []byte) ([]byte, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(transformed))
	if err != nil {
		return nil, fmt.Errorf("gzip transform: new reader: %w", err)
	}
	defer gzr.Close()
	return readAll(gzr)
}
