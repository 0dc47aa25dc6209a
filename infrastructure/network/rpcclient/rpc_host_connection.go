package rpcclient

// TestHostConnectionMethod is the remote method that checks the server's
// connection to one of its configured hosts.
//
// TODO: add a TestHostConnection call once the server exposes the method
// and its argument and reply types are defined.
const TestHostConnectionMethod = "GetoRPC.TestHostConnection"
