// Package registry implements create, read, update and delete for the
// documents addressed by a business "id" field: experiments and sensor
// devices.
//
// A Registry is parameterized by a Kind naming the collection, the fields
// required on create and the equality filters accepted when listing. Errors
// returned for client mistakes are *Error values wrapping ErrValidation,
// ErrNotFound or ErrDuplicate; their message is meant for the API response.
package registry
