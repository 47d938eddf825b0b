// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network

// SocketStack is the explicit work stack of the evaluation walk. It
// holds the sockets whose values are still needed; the top of the
// stack is always worked on first.
type socketStack struct {
	q []Socket
}

// Push pushes socket s onto the stack.
func (s *socketStack) Push(sock Socket) {
	s.q = append(s.q, sock)
}

// PushInputs pushes the provided input sockets in order, so that the
// last one ends up on top.
func (s *socketStack) PushInputs(socks []*InputSocket) {
	for _, sock := range socks {
		s.q = append(s.q, sock)
	}
}

// Peek returns the socket on top of the stack without removing it.
func (s *socketStack) Peek() Socket {
	return s.q[len(s.q)-1]
}

// Pop removes the socket on top of the stack.
func (s *socketStack) Pop() {
	s.q[len(s.q)-1] = nil
	s.q = s.q[:len(s.q)-1]
}

// Len returns the number of sockets on the stack.
func (s *socketStack) Len() int {
	return len(s.q)
}
