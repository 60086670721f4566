package darkhold

// Identity the gateway reports to the app-server during initialize.
const (
	ClientName    = "darkhold-go"
	ClientTitle   = "Darkhold Go"
	ClientVersion = "0.1.0"
)
