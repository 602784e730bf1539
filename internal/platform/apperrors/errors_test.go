package apperrors

import (
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Structured Errors", func() {
	Describe("AppError", func() {
		Context("basic error creation", func() {
			It("should create error with correct properties", func() {
				err := New(ErrorTypeValidation, "test message")

				Expect(err.Type).To(Equal(ErrorTypeValidation))
				Expect(err.Message).To(Equal("test message"))
				Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(err.Details).To(BeEmpty())
				Expect(err.Cause).To(BeNil())
			})

			It("should implement error interface correctly", func() {
				err := New(ErrorTypeValidation, "test message")

				Expect(err.Error()).To(Equal("validation: test message"))
			})

			It("should include details in error string when present", func() {
				err := New(ErrorTypeValidation, "test message").WithDetails("extra info")

				Expect(err.Error()).To(Equal("validation: test message (extra info)"))
			})
		})

		Context("error wrapping", func() {
			It("should wrap underlying error", func() {
				originalErr := errors.New("original error")
				wrappedErr := Wrap(originalErr, ErrorTypeDatabase, "operation failed")

				Expect(wrappedErr.Type).To(Equal(ErrorTypeDatabase))
				Expect(wrappedErr.Message).To(Equal("operation failed"))
				Expect(wrappedErr.Cause).To(Equal(originalErr))
				Expect(wrappedErr.Unwrap()).To(Equal(originalErr))
			})

			It("should format wrapped error with arguments", func() {
				originalErr := errors.New("connection refused")
				wrappedErr := Wrapf(originalErr, ErrorTypeCIRequest, "failed to connect to %s:%d", "jenkins", 443)

				Expect(wrappedErr.Message).To(Equal("failed to connect to jenkins:443"))
				Expect(wrappedErr.Cause).To(Equal(originalErr))
			})
		})

		Context("adding details", func() {
			It("should add details to existing error", func() {
				err := New(ErrorTypeAuth, "authentication failed")
				detailedErr := err.WithDetails("invalid pin")

				Expect(detailedErr.Details).To(Equal("invalid pin"))
				Expect(detailedErr).To(BeIdenticalTo(err))
			})

			It("should add formatted details", func() {
				err := New(ErrorTypeAuth, "authentication failed")
				detailedErr := err.WithDetailsf("release %s, attempt %d", "6.4", 3)

				Expect(detailedErr.Details).To(Equal("release 6.4, attempt 3"))
			})
		})
	})

	Describe("HTTP Status Code Mapping", func() {
		It("should map error types to correct HTTP status codes", func() {
			testCases := []struct {
				errorType  ErrorType
				statusCode int
			}{
				{ErrorTypeValidation, http.StatusBadRequest},
				{ErrorTypeNotFound, http.StatusNotFound},
				{ErrorTypeAuth, http.StatusUnauthorized},
				{ErrorTypeCIRequest, http.StatusBadGateway},
				{ErrorTypeParse, http.StatusUnprocessableEntity},
				{ErrorTypeImport, http.StatusConflict},
				{ErrorTypeSchedule, http.StatusConflict},
				{ErrorTypeDatabase, http.StatusInternalServerError},
				{ErrorTypeInternal, http.StatusInternalServerError},
			}

			for _, tc := range testCases {
				err := New(tc.errorType, "msg")
				Expect(err.HTTPStatus()).To(Equal(tc.statusCode))
			}
		})

		It("should default non-AppError errors to 500", func() {
			Expect(StatusFor(errors.New("boom"))).To(Equal(http.StatusInternalServerError))
		})

		It("should resolve the status of an AppError via As", func() {
			err := New(ErrorTypeNotFound, "missing release")
			appErr, ok := As(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.HTTPStatus()).To(Equal(http.StatusNotFound))
		})
	})
})
