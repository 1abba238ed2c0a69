package capture

// User-facing messages, es-ES.
const (
	MsgAudioSessionActivate   = "No se pudo activar la sesión de audio."
	MsgAudioEngineStart       = "No se pudo iniciar el motor de audio."
	MsgAudioSessionDeactivate = "No se pudo desactivar la sesión de audio."
	MsgRecognitionError       = "Error durante el reconocimiento: %s"
	MsgPermissionUnavailable  = "No se pudo consultar el estado de autorización."
)
