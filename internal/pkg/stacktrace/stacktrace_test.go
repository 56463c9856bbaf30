package stacktrace

import (
	"reflect"
	"testing"
)

func TestInternalPaths(t *testing.T) {
	tests := []struct {
		name  string
		stack string
		want  []string
	}{
		{
			name:  "no internal frames",
			stack: "goroutine 1 [running]:\nruntime/debug.Stack()\n\t/usr/local/go/src/runtime/debug/stack.go:26 +0x5e\n",
			want:  nil,
		},
		{
			name: "keeps module frames and drops offsets",
			stack: "goroutine 7 [running]:\n" +
				"github.com/x/gonotify/internal/notification/usecase.(*Usecase).deliver(...)\n" +
				"\t/src/gonotify/internal/notification/usecase/delivery_process.go:120 +0x1f\n" +
				"net/http.HandlerFunc.ServeHTTP(...)\n" +
				"\t/usr/local/go/src/net/http/server.go:2220 +0x29\n" +
				"\t/src/gonotify/internal/pkg/router/router.go:88\n",
			want: []string{
				"internal/notification/usecase/delivery_process.go:120",
				"internal/pkg/router/router.go:88",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			got := InternalPaths([]byte(tt.stack))

			// Assert
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("InternalPaths() = %v, want %v", got, tt.want)
			}
		})
	}
}
