package config

var (
	// AppName is the name of the application
	AppName = "ipnotify"

	// Config search paths, used when no file is given explicitly

	// InDot is the path to the config file in ./
	InDot = "."
	// InEtc is the path to the config file in /etc/{AppName}
	InEtc = "/etc/" + AppName
	// InHome is the path to the config file in $HOME/.config/{AppName}
	InHome = "$HOME/.config/" + AppName
)
