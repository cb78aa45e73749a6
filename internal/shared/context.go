package shared

import "context"

type subjectContextKey struct{}

// ContextWithSubject stores the authenticated external subject identity in context.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// SubjectFromContext extracts the subject identity from context. The empty
// string means no authenticated subject is attached.
func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectContextKey{}).(string)
	return subject
}
