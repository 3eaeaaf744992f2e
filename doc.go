/*
Package uhura routes operator requests to monitored application nodes and
reassembles the answers. uhura does not collect or store metrics itself;
it is the aggregation front end sitting between an operator and a fleet of
monitored nodes, each of which exposes its own monitoring endpoint.

The uhura application serves a single monitoring endpoint:

	http://uhurahostname.com:6910/monitoring
		The monitoring front end. An "application" query parameter
		selects the monitored application; the chosen application is
		remembered in a cookie between requests.
	http://uhurahostname.com:6910/monitoring?action=gc
		Forwards the gc action to every node of the active application.
		Other actions include heap_dump, invalidate_sessions,
		kill_thread, pause_job, resume_job, clear_cache,
		clear_counter and remove_application.
	http://uhurahostname.com:6910/monitoring?part=connections
		Splices the connections section of every node of the active
		application into one page, one heading per node.
	http://uhurahostname.com:6910/monitoring?part=crashes&path=/a/crash/file
		Downloads a crash artifact from the first node that has it.
	http://uhurahostname.com:6910/monitoring?metric=/proc/cpu/sys
		Returns the named scalar value from every node as plain text,
		"||" separated.
	http://uhurahostname.com:6910/monitoring?format=json
		Returns the aggregate state of the active application as a
		gzip compressed machine serialization. Formats: serialized
		(gob), json, xml.
	http://uhurahostname.com:6910/
		The status page: every registered application, its nodes and
		their availability.
	http://uhurahostname.com:6910/api/applications
		The registry as JSON.

Applications are registered in a YAML file. A registered application is
either a leaf owning node URLs or an aggregation group owning member
application names:

	- name: myapp
	  urls:
	  - http://host1:8080/monitoring?format=serialized
	  - http://host2:8080/monitoring?format=serialized
	- name: everything
	  members:
	  - myapp
	  - otherapp

The file is watched for changes and may also be mutated through the
monitoring endpoint (action=remove_application).
*/
package uhura
