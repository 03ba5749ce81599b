package gridswap

// Version is the library version, stamped into MCP server metadata and
// printed by the version command.
const Version = "0.1.0"
