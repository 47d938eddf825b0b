// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package mfnet

import (
	"crypto"
	_ "crypto/sha256"

	"github.com/grailbio/base/digest"
)

// Digester computes the structural digests of signatures and
// networks, and the span ids used in evaluation traces.
var Digester = digest.Digester(crypto.SHA256)
