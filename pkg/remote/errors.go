package remote

import (
	"errors"
	"fmt"
)

var (
	ErrNoChanges          = errors.New("no changes to push")
	ErrRemoteIDRequired   = errors.New("remote id required (no remote linked yet)")
	ErrInvalidRemoteID    = errors.New("invalid remote id")
	ErrRemoteRepoNotFound = errors.New("remote repository not found")
	ErrBundleNotFound     = errors.New("bundle not found")
	ErrTransferFailure    = errors.New("transfer failed")
	ErrRegistryFailure    = errors.New("registry request failed")
	ErrInvalidBundle      = errors.New("invalid bundle")
	ErrCloneTargetExists  = errors.New("clone target already exists and is not empty")
	ErrInvalidRepoName    = errors.New("invalid remote repository name")
)

// TransferError wraps a failure reported by a Channel.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("transfer %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transfer %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool { return target == ErrTransferFailure }

// RegistryError wraps a failure reported by a Registry.
type RegistryError struct {
	Op  string
	Err error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

func (e *RegistryError) Is(target error) bool { return target == ErrRegistryFailure }

func transferErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransferError
	if errors.As(err, &te) {
		return err
	}
	return &TransferError{Op: op, Path: path, Err: err}
}

// registryErr wraps err unless it is already typed or one of the lookup
// sentinels that callers branch on.
func registryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRemoteRepoNotFound) || errors.Is(err, ErrBundleNotFound) {
		return err
	}
	var re *RegistryError
	if errors.As(err, &re) {
		return err
	}
	return &RegistryError{Op: op, Err: err}
}
