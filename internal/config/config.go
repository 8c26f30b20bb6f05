package config

import (
	"flag"
	"runtime"
)

type Config struct {
	ModelsDir  string
	VADModel   string
	Port       string
	GRPCAddr   string
	Provider   string
	NumThreads int
}

func Load() *Config {
	modelsDir := flag.String("models", "data/models", "Directory with installed model bundles")
	vadModel := flag.String("vad", "", "Path to silero VAD model (optional)")
	port := flag.String("port", "8090", "HTTP/WebSocket server port")
	grpcAddr := flag.String("grpc", "", "gRPC listener address (unix:/path, npipe:\\\\.\\pipe\\name or host:port)")
	provider := flag.String("provider", "auto", "Inference provider: auto, cpu, coreml, cuda")
	numThreads := flag.Int("threads", runtime.NumCPU()/2, "Decoder threads per engine")
	flag.Parse()

	threads := *numThreads
	if threads < 1 {
		threads = 1
	}

	return &Config{
		ModelsDir:  *modelsDir,
		VADModel:   *vadModel,
		Port:       *port,
		GRPCAddr:   *grpcAddr,
		Provider:   *provider,
		NumThreads: threads,
	}
}
