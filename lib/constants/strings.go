package constants

const (
	// StringsEmpty - a empty space
	StringsEmpty = ""

	// StringsPKG - the package abbreviation
	StringsPKG = "pkg"

	// StringsFunc - the function abbreviation
	StringsFunc = "func"

	// StringsIP - the ip tag name
	StringsIP = "ip"

	// StringsConnID - the connection id tag name
	StringsConnID = "conn"

	// StringsSource - the source tag name
	StringsSource = "source"

	// StringsType - the type tag name
	StringsType = "type"

	// StringsPort - the port tag name
	StringsPort = "port"

	// StringsDatabase - the database tag name
	StringsDatabase = "database"

	// StringsMetricNetworkConnection - the network connection metric name
	StringsMetricNetworkConnection = "network.connection"
)
