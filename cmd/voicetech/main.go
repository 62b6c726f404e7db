// Command voicetech synthesizes speech in eleven Indian languages and serves
// the synthesis API.
//
//	@title			voicetech TTS API
//	@version		1.0
//	@description	Multilingual text-to-speech for Indian languages with accent and style conditioning.
//	@BasePath		/
package main

import (
	"fmt"
	"os"

	"github.com/example/go-voicetech-tts/internal/onnx"
)

func main() {
	err := NewRootCmd().Execute()

	shutdownErr := onnx.Shutdown()
	if shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}
