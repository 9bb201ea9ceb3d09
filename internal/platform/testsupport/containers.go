// Package testsupport starts throwaway backing services for integration tests.
package testsupport

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
	redisImage             = "redis:7-alpine"
)

// RequireDocker skips the test when no docker daemon is reachable.
func RequireDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "docker", "info").Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}
}

// StartFirestoreEmulator runs the Firestore emulator and returns its host:port.
func StartFirestoreEmulator(t *testing.T) string {
	t.Helper()
	RequireDocker(t)
	container := start(t, testcontainers.ContainerRequest{
		Image:        firestoreEmulatorImage,
		ExposedPorts: []string{"8080/tcp"},
		Cmd:          []string{"gcloud", "beta", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080", "--quiet"},
		WaitingFor:   wait.ForLog("Dev App Server is now running").WithStartupTimeout(90 * time.Second),
	})
	endpoint, err := container.PortEndpoint(context.Background(), "8080/tcp", "")
	if err != nil {
		t.Fatalf("firestore emulator endpoint: %v", err)
	}
	return endpoint
}

// StartRedis runs a redis server and returns a redis:// URL for it.
func StartRedis(t *testing.T) string {
	t.Helper()
	RequireDocker(t)
	container := start(t, testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	})
	endpoint, err := container.PortEndpoint(context.Background(), "6379/tcp", "redis")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	return endpoint + "/0"
}

func start(t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()
	container, err := testcontainers.GenericContainer(context.Background(), testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})
	return container
}
