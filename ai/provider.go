package ai

import "runtime"

// detectBestProvider определяет лучший ONNX provider для текущей платформы
func detectBestProvider() string {
	// На macOS с Apple Silicon предпочитаем CoreML
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return "coreml"
	}
	// На Linux/Windows возможен cuda, но по умолчанию безопасный cpu
	return "cpu"
}

// resolveProvider раскрывает "auto" в конкретный provider
func resolveProvider(requested string) string {
	if requested == "" || requested == "auto" {
		return detectBestProvider()
	}
	return requested
}
