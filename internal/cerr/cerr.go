// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

// Package cerr provides a string-backed error type so that packages can
// declare sentinel errors as true constants.
package cerr

type Error string

func (e Error) Error() string {
	return string(e)
}
